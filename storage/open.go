package storage

import (
	"context"
	"log/slog"

	"triple-triad-server/config"
)

// Open picks the backend from cfg: Postgres when DatabaseURL is set,
// otherwise SQLite when SQLitePath is set. With neither it returns (nil, nil)
// and matches live in memory only.
func Open(ctx context.Context, cfg *config.Config) (MatchStore, error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.SQLitePath != "":
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		slog.Info("no database configured; matches are kept in memory only", "tag", "storage")
		return nil, nil
	}
}
