// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/metrics"
)

// ErrBusClosed is returned by Subscribe after Close.
var ErrBusClosed = errors.New("bus: closed")

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

const dropLogEvery = 100

var dropCount atomic.Uint64

// MemoryBus is an in-memory pub/sub. Publish never blocks: a subscriber whose
// buffer is full loses the message and the drop is counted.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub
	buffer int
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(DefaultBuffer)
}

func NewMemoryBusWithBuffer(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBus{subs: make(map[string][]*memSub), buffer: buffer}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if msg.Topic == "" {
		msg.Topic = topic
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	metrics.IncBusPublished(topic)

	deliver := func(subs []*memSub) {
		for _, s := range subs {
			if !s.opts.Accepts(msg.Type) {
				continue
			}
			select {
			case s.ch <- msg:
			default:
				metrics.IncBusDrop(topic)
				count := dropCount.Add(1)
				if count%dropLogEvery == 1 {
					log.L().Warn().
						Str("topic", topic).
						Str("reason", "full").
						Uint64("dropped", count).
						Msg("memory bus dropped message for slow subscriber")
				}
			}
		}
	}
	deliver(b.subs[topic])
	if topic != TopicAll {
		deliver(b.subs[TopicAll])
	}
	return nil
}

// Subscribe registers a subscription. It is closed automatically when ctx ends.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, opts ...SubscribeOption) (Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	o := ResolveSubscribeOptions(b.buffer, opts...)
	s := &memSub{b: b, topic: topic, opts: o, ch: make(chan Message, o.Buffer), done: make(chan struct{})}
	b.subs[topic] = append(b.subs[topic], s)

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

// Close closes every subscription.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, lst := range b.subs {
		for _, s := range lst {
			s.closeLocked()
		}
		delete(b.subs, topic)
	}
}

type memSub struct {
	b     *MemoryBus
	topic string
	opts  SubscribeOptions
	ch    chan Message

	once sync.Once
	done chan struct{}
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	s.closeLocked()
	return nil
}

func (s *memSub) closeLocked() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}

var _ Bus = (*MemoryBus)(nil)
