package config

const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Storage struct {
	Type     string          `mapstructure:"type"`
	File     FileStorage     `mapstructure:"file"`
	SQLite   SQLiteStorage   `mapstructure:"sqlite"`
	Postgres PostgresStorage `mapstructure:"postgres"`
}

type FileStorage struct {
	Path string `mapstructure:"path"`
}

type SQLiteStorage struct {
	Path string `mapstructure:"path"`
}

type PostgresStorage struct {
	DSN string `mapstructure:"dsn"`
}

// resolvePaths anchors relative file paths in the instance folder.
func (s *Storage) resolvePaths(base string) {
	s.File.Path = relativeTo(base, s.File.Path)
	s.SQLite.Path = relativeTo(base, s.SQLite.Path)
}
