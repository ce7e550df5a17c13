// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-progress-api/internal/database"
	"github.com/noah-isme/gema-progress-api/internal/models"
)

// NewDB opens an in-memory SQLite database private to the calling test and
// migrates the schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateLearner inserts a learner with a unique email.
func CreateLearner(t *testing.T, db *gorm.DB, name string) models.Learner {
	t.Helper()

	learner := models.Learner{
		Name:  name,
		Email: fmt.Sprintf("%s-%d@example.com", strings.ToLower(strings.ReplaceAll(name, " ", ".")), time.Now().UnixNano()),
		Level: models.LevelBeginner,
	}
	require.NoError(t, db.Create(&learner).Error)
	return learner
}

// CreateActivity inserts an activity open from start to end.
func CreateActivity(t *testing.T, db *gorm.DB, title string, maxScore int, start, end time.Time) models.Activity {
	t.Helper()

	activity := models.Activity{
		Title:     title,
		MaxScore:  maxScore,
		StartDate: start,
		EndDate:   end,
	}
	require.NoError(t, db.Create(&activity).Error)
	return activity
}

// CreateOpenActivity inserts an activity whose window spans the current time
// by a comfortable margin.
func CreateOpenActivity(t *testing.T, db *gorm.DB, title string, maxScore int) models.Activity {
	t.Helper()

	now := time.Now()
	return CreateActivity(t, db, title, maxScore, now.Add(-24*time.Hour), now.Add(24*time.Hour))
}
