// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/danielhkuo/council/models"
)

// Backend kinds accepted by Open
const (
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

var ErrUnknownKind = errors.New("unknown database type")

var placeholder = regexp.MustCompile(`\$(\d+)`)

// StateStore loads and saves the council state document.
type StateStore interface {
	Load(ctx context.Context) (models.State, error)
	Save(ctx context.Context, state models.State) error
	Close() error
}

// Open returns the store for kind. url is a file path for "file" and
// "sqlite" and a connection string for "postgres". defaults seed the
// settings of a brand new state document.
func Open(ctx context.Context, kind, url string, defaults models.Settings) (StateStore, error) {
	switch kind {
	case KindFile:
		return OpenFile(url, defaults)
	case KindSQLite:
		return OpenSQL(ctx, driverSQLite, url, defaults)
	case KindPostgres:
		if url == "" {
			return nil, errors.New("database URL required for postgres")
		}
		return OpenSQL(ctx, driverPostgres, url, defaults)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
