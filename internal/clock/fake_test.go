// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestFake_FiresInDueOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []string
	var seenAt []time.Time

	c.AfterFunc(3*time.Second, func() { order = append(order, "c"); seenAt = append(seenAt, c.Now()) })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a"); seenAt = append(seenAt, c.Now()) })
	c.AfterFunc(1*time.Second, func() { order = append(order, "b"); seenAt = append(seenAt, c.Now()) })

	c.Advance(5 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(time.Second), epoch.Add(3 * time.Second)}, seenAt)
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())
	assert.Equal(t, 0, c.Pending())
}

func TestFake_StopPreventsFire(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFake_CallbackCanRearm(t *testing.T) {
	c := NewFake(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(10 * time.Second)
	assert.Equal(t, 10, count)
	assert.Equal(t, 1, c.Pending())
}

func TestFake_StopAfterFireReportsFalse(t *testing.T) {
	c := NewFake(epoch)
	tm := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, tm.Stop())
}
