// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"slices"
	"time"

	"github.com/luuxx/ccp/internal/domain/session/model"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/log"
)

// planBursts draws the burst start offsets for one run. Offsets lie in
// [MinGap, duration-BurstTail), are sorted and at least MinGap apart. The
// drawn count is honoured whenever the window fits it; otherwise as many
// bursts as fit are planned.
//
// Offsets are drawn in the window shrunk by the gaps and then spread apart,
// so no draw is ever rejected.
func (e *Engine) planBursts(b *model.Bursts, duration time.Duration) []time.Duration {
	lo := b.MinGap
	hi := duration - e.cfg.BurstTail
	if hi <= lo {
		return nil
	}
	count := b.MinCount
	if b.MaxCount > b.MinCount {
		count += e.rng.IntN(b.MaxCount - b.MinCount + 1)
	}
	window := hi - lo
	if b.MinGap > 0 {
		count = min(count, int((window-1)/b.MinGap)+1)
	}
	if count <= 0 {
		return nil
	}

	slack := window - time.Duration(count-1)*b.MinGap
	out := make([]time.Duration, count)
	for i := range out {
		out[i] = time.Duration(e.rng.Int64N(int64(slack)))
	}
	slices.Sort(out)
	for i := range out {
		out[i] += lo + time.Duration(i)*b.MinGap
	}
	return out
}

func (e *Engine) burstLength() time.Duration {
	lo, hi := e.cfg.BurstMinLength, e.cfg.BurstMaxLength
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.rng.Int64N(int64(hi-lo)+1))
}

func (e *Engine) stepBursts(r *runState, elapsed time.Duration) {
	b := r.sess.Bursts
	if b == nil {
		return
	}
	field := settings.EnableField(b.Effect)

	if r.burstActive {
		if elapsed < r.burstEnd {
			return
		}
		r.burstActive = false
		e.guard(b.Effect, "burst_end", func() error {
			return e.settings.Set(field, false)
		})
		delete(r.owned, b.Effect)
		e.stopOwned(r, b.Effect)
		e.logger.Debug().Str(log.FieldRunID, r.id).Str(log.FieldEffect, string(b.Effect)).Msg("burst ended")
		e.publish(model.EventBurstEnded, model.Burst{RunID: r.id, Effect: b.Effect})
	}

	if r.nextBurst >= len(r.bursts) || elapsed < r.bursts[r.nextBurst] {
		return
	}
	// Offsets that came due during the previous burst collapse into one.
	for r.nextBurst < len(r.bursts) && elapsed >= r.bursts[r.nextBurst] {
		r.nextBurst++
	}
	length := e.burstLength()
	r.burstActive = true
	r.burstEnd = elapsed + length
	e.guard(b.Effect, "burst_start", func() error {
		return e.settings.Set(field, true)
	})
	e.startOwned(r, b.Effect)
	e.logger.Debug().
		Str(log.FieldRunID, r.id).
		Str(log.FieldEffect, string(b.Effect)).
		Dur("length", length).
		Msg("burst started")
	e.publish(model.EventBurstStarted, model.Burst{RunID: r.id, Effect: b.Effect, Length: length})
}
