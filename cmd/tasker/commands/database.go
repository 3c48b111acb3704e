package commands

import (
	"database/sql"

	"github.com/GNHua/oneclaw-sub005/config"
	"github.com/GNHua/oneclaw-sub005/db"
	"github.com/GNHua/oneclaw-sub005/errors"
	"github.com/GNHua/oneclaw-sub005/logger"
)

// openDatabase loads configuration and opens the migrated database. An
// explicit path overrides the configured one.
func openDatabase(pathOverride string) (*sql.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}

	path := cfg.Database.Path
	if pathOverride != "" {
		path = pathOverride
	}

	database, err := db.OpenWithMigrations(path, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open database at %s", path)
	}

	return database, cfg, nil
}
