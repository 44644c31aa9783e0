// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"regexp"
	"strings"
)

var sessionIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var slugDropRe = regexp.MustCompile(`[^a-z0-9]+`)

// IsSafeSessionID returns true if the ID is safe for filesystem paths and URLs.
func IsSafeSessionID(id string) bool {
	return sessionIDRe.MatchString(id)
}

// SlugID derives a session ID from a display name ("Morning Focus" -> "morning-focus").
func SlugID(name string) string {
	return strings.Trim(slugDropRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
