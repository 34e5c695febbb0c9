package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.AuditLog{},
		&models.RevokedToken{},
		&models.Job{},
		&models.Application{},
	)
}

// Seed describes the bootstrap administrator created on first start.
type Seed struct {
	AdminEmail    string
	AdminPassword string
	FirstName     string
	LastName      string
	// HashCost overrides the bcrypt cost; zero means crypto.PasswordCost.
	HashCost int
}

// SeedData creates the bootstrap administrator when configured and missing.
// Existing accounts are never modified.
func SeedData(db *gorm.DB, seed Seed) error {
	email := models.NormalizeEmail(seed.AdminEmail)
	if email == "" {
		return nil
	}
	if strings.TrimSpace(seed.AdminPassword) == "" {
		return errors.New("bootstrap admin password is required when an email is configured")
	}

	var existing models.Account
	err := db.Where("email = ?", email).Take(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	cost := seed.HashCost
	if cost == 0 {
		cost = crypto.PasswordCost
	}
	hash, err := crypto.HashPasswordWithCost(seed.AdminPassword, cost)
	if err != nil {
		return fmt.Errorf("hash bootstrap admin password: %w", err)
	}

	now := time.Now().UTC()
	admin := models.Account{
		Email:           email,
		PasswordHash:    hash,
		Role:            models.RoleAdmin,
		FirstName:       seed.FirstName,
		LastName:        seed.LastName,
		IsActive:        true,
		EmailVerified:   true,
		EmailVerifiedAt: &now,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	return nil
}
