package app

import (
	"github.com/charlesng35/hireflow/internal/database"
	"github.com/charlesng35/hireflow/internal/storage"
)

// DatabaseSettings converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	return database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.Username,
		Password:        c.Password,
		Name:            c.Name,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// Seed converts BootstrapConfig into the seed applied on start-up.
func (c Config) Seed() database.Seed {
	return database.Seed{
		AdminEmail:    c.Bootstrap.AdminEmail,
		AdminPassword: c.Bootstrap.AdminPassword,
		FirstName:     c.Bootstrap.FirstName,
		LastName:      c.Bootstrap.LastName,
		HashCost:      c.Auth.PasswordHashCost(),
	}
}

// StorageSettings converts StorageConfig into the storage package representation.
func (c StorageConfig) StorageSettings() storage.Config {
	return storage.Config{URL: c.URL, PublicBaseURL: c.PublicBaseURL}
}
