package services

import (
	"path/filepath"
	"testing"

	"casedesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "casedesk_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.AuditLog{},
		&models.AuditFieldChange{},
		&models.Case{},
		&models.Todo{},
		&models.Note{},
		&models.KnowledgeDoc{},
	))

	return db
}

func newTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: "x",
		Role:         "agent",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
