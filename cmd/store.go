package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/event-scout/internal/store"
)

// initStore opens the run history store selected by config.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		path := cfg.Store.Path
		if path == "" {
			path = "scout.db"
		}
		st, err := store.NewSQLite(path)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil

	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "connect postgres store")
		}
		return st, nil

	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
