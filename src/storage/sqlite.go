package storage

import (
	"database/sql"
	"fmt"

	"market-relay/src/helpers"
	"market-relay/src/logger"
	"market-relay/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	sqlStore
	Config *models.MConfig
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		sqlStore: sqlStore{
			Logger: log,
			dialect: dialect{
				name:        "sqlite",
				placeholder: func(int) string { return "?" },
				table:       func(name string) string { return name },
				valueType:   "TEXT",
				dateType:    "TEXT",
				dateSelect:  "date",
			},
		},
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	// One writer keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)
	d.DB = db

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("enable foreign keys on %s", d.Config.Storage.DBPath), err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("SQLite initialized at %s", d.Config.Storage.DBPath)
	return nil
}
