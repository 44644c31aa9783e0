// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"time"

	"github.com/luuxx/ccp/internal/persistence/sqlite"
)

// LoopChecker reports whether the scheduling loop is still serving.
type LoopChecker struct {
	running func() bool
}

func NewLoopChecker(running func() bool) *LoopChecker {
	return &LoopChecker{running: running}
}

func (c *LoopChecker) Name() string { return "loop" }

func (c *LoopChecker) Check(context.Context) CheckResult {
	if !c.running() {
		return CheckResult{Status: StatusUnhealthy, Message: "scheduling loop is not running"}
	}
	return CheckResult{Status: StatusHealthy, Message: "scheduling loop running"}
}

// DatabaseChecker runs a quick integrity check against a SQLite database.
type DatabaseChecker struct {
	name    string
	db      *sql.DB
	timeout time.Duration
}

func NewDatabaseChecker(name string, db *sql.DB) *DatabaseChecker {
	return &DatabaseChecker{name: name, db: db, timeout: 2 * time.Second}
}

func (c *DatabaseChecker) Name() string { return c.name }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	problems, err := sqlite.VerifyIntegrity(ctx, c.db, "quick")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if len(problems) > 0 {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   strings.Join(problems, "; "),
			Message: "integrity check failed",
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "integrity ok"}
}

// DirChecker checks an optional directory. A missing directory is degraded,
// a path that is not a directory is unhealthy.
type DirChecker struct {
	name string
	path string
}

func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	info, err := os.Stat(c.path)
	switch {
	case os.IsNotExist(err):
		return CheckResult{Status: StatusDegraded, Message: "directory not found", Error: c.path}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case !info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file"}
	}
	return CheckResult{Status: StatusHealthy, Message: "directory exists"}
}
