// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package effects

import (
	"context"
	"sync/atomic"

	"github.com/luuxx/ccp/internal/bus"
	"github.com/luuxx/ccp/internal/clock"
)

// Command is the payload published for a Remote capability.
type Command struct {
	Effect Kind   `json:"effect"`
	Op     string `json:"op"` // start|stop|trigger
}

// Remote forwards capability calls to the effects topic, where the desktop
// renderer consumes them over the event stream. Running state is tracked
// locally; the renderer reports an effect that ended on its own through
// MarkStopped.
type Remote struct {
	kind    Kind
	pub     bus.Publisher
	clk     clock.Clock
	running atomic.Bool
}

func NewRemote(kind Kind, pub bus.Publisher, clk clock.Clock) *Remote {
	if pub == nil {
		pub = bus.Discard
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Remote{kind: kind, pub: pub, clk: clk}
}

func (r *Remote) Start() error {
	if err := r.send("start"); err != nil {
		return err
	}
	r.running.Store(true)
	return nil
}

func (r *Remote) Stop() error {
	r.running.Store(false)
	return r.send("stop")
}

func (r *Remote) TriggerOnce() error {
	return r.send("trigger")
}

func (r *Remote) IsRunning() bool {
	return r.running.Load()
}

// MarkStopped records that the renderer finished the effect.
func (r *Remote) MarkStopped() {
	r.running.Store(false)
}

func (r *Remote) send(op string) error {
	return r.pub.Publish(context.Background(), bus.TopicEffects, bus.Message{
		Type:    "effect." + op,
		At:      r.clk.Now(),
		Payload: Command{Effect: r.kind, Op: op},
	})
}

var (
	_ Capability = (*Remote)(nil)
	_ Trigger    = (*Remote)(nil)
)
