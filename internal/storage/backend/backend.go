// Package backend selects a storage implementation from DATABASE_URL.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/hongminglow/loan-be/internal/storage"
	"github.com/hongminglow/loan-be/internal/storage/memory"
	"github.com/hongminglow/loan-be/internal/storage/postgres"
	"github.com/hongminglow/loan-be/internal/storage/sqlite"
)

// Open returns the store named by the URL scheme: postgres://, postgresql://,
// sqlite://<path> or memory://.
func Open(ctx context.Context, databaseURL string) (storage.Store, error) {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return nil, fmt.Errorf("database url %q has no scheme", redact(databaseURL))
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return postgres.NewStore(ctx, databaseURL)
	case "sqlite":
		if rest == "" {
			return nil, fmt.Errorf("sqlite url needs a file path")
		}
		return sqlite.Open(rest)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", scheme)
	}
}

// redact hides credentials in URLs that fail to parse.
func redact(databaseURL string) string {
	if at := strings.LastIndex(databaseURL, "@"); at >= 0 {
		return "***" + databaseURL[at:]
	}
	return databaseURL
}
