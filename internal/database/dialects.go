package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// dialect couples a DSN builder with the gorm dialector for one backend.
type dialect struct {
	name      string
	dsn       func(Config) (string, error)
	dialector func(string) gorm.Dialector
	// afterOpen runs once on the fresh handle.
	afterOpen func(*gorm.DB) error
}

var dialects = map[string]dialect{
	"sqlite":     {name: "sqlite", dsn: sqliteDSN, dialector: sqlite.Open, afterOpen: sqlitePragmas},
	"postgres":   {name: "postgres", dsn: postgresDSN, dialector: postgres.Open},
	"postgresql": {name: "postgres", dsn: postgresDSN, dialector: postgres.Open},
	"mysql":      {name: "mysql", dsn: mysqlDSN, dialector: mysql.Open},
	"mariadb":    {name: "mysql", dsn: mysqlDSN, dialector: mysql.Open},
}

func lookupDialect(driver string) (dialect, error) {
	key := strings.ToLower(strings.TrimSpace(driver))
	if key == "" {
		key = "sqlite"
	}
	d, ok := dialects[key]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// sqliteDSN accepts a file path, ":memory:" for the shared in-memory database,
// or "memory:<name>" for an isolated named one.
func sqliteDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "", strings.EqualFold(path, ":memory:"):
		return "file::memory:?cache=shared&_foreign_keys=1", nil
	case strings.HasPrefix(path, "memory:"):
		name := url.PathEscape(strings.TrimPrefix(path, "memory:"))
		return "file:" + name + "?mode=memory&cache=shared&_foreign_keys=1", nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
	}
	return "file:" + filepath.ToSlash(path) + "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000", nil
}

func sqlitePragmas(db *gorm.DB) error {
	return db.Exec("PRAGMA foreign_keys = ON").Error
}

// postgresDSN renders a postgres:// URL; sslmode defaults to disable.
func postgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(orDefault(cfg.Host, "localhost"), strconv.Itoa(portOrDefault(cfg.Port, 5432))),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}

	query := url.Values{}
	for key, value := range cfg.Options {
		query.Set(key, value)
	}
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// mysqlDSN delegates formatting to the driver so passwords with reserved
// characters survive.
func mysqlDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(orDefault(cfg.Host, "127.0.0.1"), strconv.Itoa(portOrDefault(cfg.Port, 3306)))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for key, value := range cfg.Options {
		if strings.EqualFold(key, "tls") {
			mc.TLSConfig = value
			continue
		}
		mc.Params[key] = value
	}
	return mc.FormatDSN(), nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func portOrDefault(port, fallback int) int {
	if port <= 0 {
		return fallback
	}
	return port
}
