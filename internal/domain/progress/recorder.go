// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"

	"github.com/luuxx/ccp/internal/bus"
	"github.com/luuxx/ccp/internal/domain/session/model"
	"github.com/luuxx/ccp/internal/log"
)

// RecorderBuffer is the recorder's subscription capacity. Only run-end events
// are delivered to it, so per-tick progress traffic cannot crowd them out.
const RecorderBuffer = 256

// Recorder persists finished runs published on the session topic, keeping
// database writes off the scheduling loop.
type Recorder struct {
	ledger *Ledger
	bus    bus.Bus
}

func NewRecorder(l *Ledger, b bus.Bus) *Recorder {
	return &Recorder{ledger: l, bus: b}
}

// Run consumes session events until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	sub, err := r.bus.Subscribe(ctx, bus.TopicSession,
		bus.WithTypes(model.EventCompleted, model.EventStopped),
		bus.WithBuffer(RecorderBuffer),
	)
	if err != nil {
		return err
	}
	defer sub.Close()

	logger := log.WithComponent("progress")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			run, ok := runFromMessage(msg)
			if !ok {
				continue
			}
			if err := r.ledger.Record(ctx, run); err != nil {
				logger.Error().Err(err).
					Str(log.FieldEvent, "progress.record_failed").
					Str(log.FieldRunID, run.RunID).
					Msg("failed to record session run")
				continue
			}
			logger.Info().
				Str(log.FieldEvent, "progress.recorded").
				Str(log.FieldRunID, run.RunID).
				Str(log.FieldSession, run.Session).
				Int("xp", run.XP).
				Int("level", r.ledger.Level()).
				Msg("session run recorded")
		}
	}
}

func runFromMessage(msg bus.Message) (Run, bool) {
	switch p := msg.Payload.(type) {
	case model.Completed:
		return Run{
			RunID:     p.RunID,
			Session:   p.Session,
			StartedAt: p.StartedAt,
			EndedAt:   p.EndedAt,
			Elapsed:   p.Duration,
			Pauses:    p.Pauses,
			XP:        p.XP,
			Completed: true,
		}, true
	case model.Stopped:
		return Run{
			RunID:     p.RunID,
			Session:   p.Session,
			StartedAt: p.StartedAt,
			EndedAt:   p.EndedAt,
			Elapsed:   p.Elapsed,
			Pauses:    p.Pauses,
		}, true
	default:
		return Run{}, false
	}
}
