// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/luuxx/ccp/internal/log"
)

// Persister durably stores a settings record.
type Persister interface {
	Persist(ctx context.Context, s Settings) error
}

// FilePersister writes the record as YAML.
type FilePersister struct {
	Path string
}

// Persist atomically replaces the settings file.
func (p FilePersister) Persist(ctx context.Context, s Settings) error {
	logger := log.FromContext(ctx)

	if err := os.MkdirAll(filepath.Dir(p.Path), 0o750); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(p.Path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending settings file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending settings file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write settings data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace settings file: %w", err)
	}
	return nil
}

// LoadFile reads a settings file written by FilePersister. Keys absent from
// the file keep their default values; unknown keys are rejected. A missing
// file yields Default().
func LoadFile(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("strict settings parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("settings file contains multiple documents or trailing content")
	}
	return s, nil
}

// AsyncSaver persists submitted records on its own goroutine. Only the most
// recent pending record is written; older ones are superseded.
type AsyncSaver struct {
	p Persister

	mu      sync.Mutex
	pending *Settings
	kick    chan struct{}
}

func NewAsyncSaver(p Persister) *AsyncSaver {
	return &AsyncSaver{p: p, kick: make(chan struct{}, 1)}
}

// Submit queues s for persistence.
func (a *AsyncSaver) Submit(s Settings) {
	a.mu.Lock()
	a.pending = &s
	a.mu.Unlock()
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Run writes pending records until ctx is cancelled, then flushes once more.
func (a *AsyncSaver) Run(ctx context.Context) error {
	logger := log.WithComponent("settings")
	for {
		select {
		case <-ctx.Done():
			if err := a.flush(context.WithoutCancel(ctx)); err != nil {
				logger.Error().Err(err).Str(log.FieldEvent, "settings.save_failed").Msg("final settings flush failed")
			}
			return nil
		case <-a.kick:
			if err := a.flush(ctx); err != nil {
				logger.Error().Err(err).Str(log.FieldEvent, "settings.save_failed").Msg("failed to persist settings")
			}
		}
	}
}

func (a *AsyncSaver) flush(ctx context.Context) error {
	a.mu.Lock()
	next := a.pending
	a.pending = nil
	a.mu.Unlock()
	if next == nil {
		return nil
	}
	return a.p.Persist(ctx, *next)
}
