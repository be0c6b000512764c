package storage

import (
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"

	"informatik-booking/internal/config"
)

type PostgresProvider struct {
	*SQLProvider
}

func NewPostgresProvider(cfg *config.Storage) (*PostgresProvider, error) {
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("storage.postgres.dsn is required")
	}
	provider, err := NewSQLProvider(cfg, "pgx", dialectPostgres, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	return &PostgresProvider{SQLProvider: provider}, nil
}
