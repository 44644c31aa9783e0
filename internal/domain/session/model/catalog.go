// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrSessionNotFound = errors.New("session not found")

//go:embed builtin/*.yaml
var builtinFS embed.FS

// ParseSession decodes one session document strictly and validates it.
func ParseSession(data []byte) (*Session, error) {
	var s Session
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidSession)
		}
		return nil, fmt.Errorf("strict session parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("session file contains multiple documents or trailing content")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Catalog is a read-only set of sessions keyed by ID.
type Catalog struct {
	byID  map[string]*Session
	order []string
}

// NewCatalog builds a catalog; a later session replaces an earlier one with the same ID.
func NewCatalog(sessions ...*Session) *Catalog {
	c := &Catalog{byID: make(map[string]*Session)}
	for _, s := range sessions {
		if _, exists := c.byID[s.ID]; !exists {
			c.order = append(c.order, s.ID)
		}
		c.byID[s.ID] = s
	}
	slices.Sort(c.order)
	return c
}

// Builtin returns the sessions shipped with the daemon.
func Builtin() (*Catalog, error) {
	sessions, err := loadFS(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	return NewCatalog(sessions...), nil
}

// LoadCatalog loads the builtin sessions plus every .yaml/.yml file in dir.
// Files in dir override builtin sessions with the same ID. An empty dir or a
// missing directory yields just the builtin set.
func LoadCatalog(dir string) (*Catalog, error) {
	sessions, err := loadFS(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	if dir != "" {
		extra, err := loadFS(os.DirFS(dir), ".")
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		sessions = append(sessions, extra...)
	}
	return NewCatalog(sessions...), nil
}

func loadFS(fsys fs.FS, root string) ([]*Session, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}
	var out []*Session
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		name := e.Name()
		if root != "." {
			name = root + "/" + name
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read session %s: %w", name, err)
		}
		s, err := ParseSession(data)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Get looks a session up by ID, falling back to a case-insensitive name match.
func (c *Catalog) Get(idOrName string) (*Session, error) {
	if s, ok := c.byID[idOrName]; ok {
		return s, nil
	}
	for _, id := range c.order {
		if strings.EqualFold(c.byID[id].Name, idOrName) {
			return c.byID[id], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, idOrName)
}

// List returns every session ordered by ID.
func (c *Catalog) List() []*Session {
	out := make([]*Session, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of sessions.
func (c *Catalog) Len() int { return len(c.order) }
