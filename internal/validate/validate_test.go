// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"127.0.0.1:8765", false},
		{":8765", false},
		{"[::1]:80", false},
		{"localhost", true},
		{"127.0.0.1:0", true},
		{"127.0.0.1:http", true},
		{"127.0.0.1:70000", true},
	}
	for _, tt := range tests {
		v := New()
		v.ListenAddr("api.listenAddr", tt.addr)
		assert.Equal(t, tt.wantErr, !v.IsValid(), tt.addr)
	}
}

func TestValidator_Ranges(t *testing.T) {
	v := New()
	v.Range("a", 5, 1, 10)
	v.FloatRange("b", 0.5, 0, 1)
	v.DurationRange("c", time.Second, time.Millisecond, time.Minute)
	v.PositiveDuration("d", time.Nanosecond)
	v.Positive("e", 1)
	v.NonNegative("f", 0)
	require.True(t, v.IsValid())
	require.NoError(t, v.Err())

	v.Range("a", 11, 1, 10)
	v.FloatRange("b", 1.5, 0, 1)
	v.DurationRange("c", time.Hour, time.Millisecond, time.Minute)
	v.PositiveDuration("d", 0)
	v.Positive("e", 0)
	v.NonNegative("f", -1)
	v.OneOf("g", "xml", []string{"http", "grpc"})
	v.NotEmpty("h", "  ")

	assert.Len(t, v.Errors(), 8)
	var verr ValidationError
	require.True(t, errors.As(v.Err(), &verr))
	assert.Len(t, verr.Errors(), 8)
	assert.Contains(t, verr.Error(), "validation failed for g")
}

func TestValidator_Directory(t *testing.T) {
	root := t.TempDir()

	v := New()
	v.Directory("dataDir", filepath.Join(root, "new", "nested"), false)
	require.True(t, v.IsValid(), "%v", v.Err())
	info, err := os.Stat(filepath.Join(root, "new", "nested"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	v = New()
	v.Directory("dataDir", filepath.Join(root, "missing"), true)
	assert.False(t, v.IsValid())

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	v = New()
	v.Directory("dataDir", file, false)
	assert.False(t, v.IsValid())

	v = New()
	v.Directory("dataDir", "../escape", false)
	assert.False(t, v.IsValid())
}

func TestParseLogLevel(t *testing.T) {
	for _, l := range LogLevels() {
		got, err := ParseLogLevel(l)
		require.NoError(t, err)
		assert.Equal(t, l, got.String())
	}
	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}
