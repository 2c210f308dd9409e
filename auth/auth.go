// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultAdminName is the reserved administrator identity used when none is configured.
const DefaultAdminName = "alex"

var ErrEmptyPrefix = errors.New("id prefix must not be empty")

// GenerateID creates a random identifier of the form "<prefix>_<hex>".
// Prefixes in use: "p" (proposal), "s" (session), "c" (connection).
func GenerateID(prefix string) (string, error) {
	if prefix == "" {
		return "", ErrEmptyPrefix
	}
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return prefix + "_" + strings.ReplaceAll(u.String(), "-", ""), nil
}

// IsAdmin reports whether name is the administrator identity.
// The comparison ignores case and surrounding whitespace, and an empty
// name is never an administrator.
func IsAdmin(name, adminName string) bool {
	name = strings.TrimSpace(name)
	adminName = strings.TrimSpace(adminName)
	if name == "" || adminName == "" {
		return false
	}
	return strings.EqualFold(name, adminName)
}
