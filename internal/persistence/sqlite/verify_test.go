// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesWAL(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "sub", "test.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMigrate_AppliesOnlyNewSteps(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "m.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	steps := []string{
		`CREATE TABLE a (id INTEGER PRIMARY KEY);`,
	}
	require.NoError(t, Migrate(ctx, db, steps))

	steps = append(steps, `CREATE TABLE b (id INTEGER PRIMARY KEY);`)
	require.NoError(t, Migrate(ctx, db, steps))
	require.NoError(t, Migrate(ctx, db, steps), "idempotent once applied")

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestMigrate_FailedStepRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "bad.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	err = Migrate(ctx, db, []string{`CREATE TABLE ok (id INTEGER);`, `CREATE TABLEX broken;`})
	require.Error(t, err)

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestVerifyIntegrity_Healthy(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ok.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, data TEXT);")
	require.NoError(t, err)

	issues, err := VerifyIntegrity(context.Background(), db, "quick")
	require.NoError(t, err)
	assert.Nil(t, issues)
}
