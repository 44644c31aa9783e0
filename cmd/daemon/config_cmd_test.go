// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luuxx/ccp/internal/config"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ccp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeYAML(t, "dataDir: "+dir+"\nlogLevel: debug\n")
	bad := writeYAML(t, "dataDir: "+dir+"\nlogLevel: shouty\n")
	unknown := writeYAML(t, "dataDir: "+dir+"\nlogLvl: debug\n")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "valid file", args: []string{"validate", "-f", good}, code: 0},
		{name: "invalid value", args: []string{"validate", "--file", bad}, code: 1},
		{name: "unknown field", args: []string{"validate", "-f", unknown}, code: 1},
		{name: "unknown subcommand", args: []string{"frobnicate"}, code: 2},
		{name: "help", args: []string{"help"}, code: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.code, runConfigCLIWith(tt.args, &stdout, &stderr), stderr.String())
		})
	}
}

func TestConfigDump_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, "dataDir: "+dir+"\napi:\n  listenAddr: 127.0.0.1:9999\n")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, runConfigCLIWith([]string{"dump", "-f", path, "--format", "json"}, &stdout, &stderr), stderr.String())

	var got config.AppConfig
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, "127.0.0.1:9999", got.API.ListenAddr)
	assert.Equal(t, filepath.Join(dir, "progress.db"), got.Progress.DBPath)
	assert.Equal(t, version, got.Version)
}

func TestConfigDump_RejectsUnknownFormat(t *testing.T) {
	path := writeYAML(t, "dataDir: "+t.TempDir()+"\n")
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, runConfigCLIWith([]string{"dump", "-f", path, "--format", "toml"}, &stdout, &stderr))
}
