package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timetable-backend/config"
	"timetable-backend/internal/model"
)

func TestDialector(t *testing.T) {
	assert.Equal(t, "sqlite", Dialector("sqlite:./var/t.db").Name())
	assert.Equal(t, "sqlite", Dialector("file::memory:?cache=shared").Name())
	assert.Equal(t, "postgres", Dialector("postgres://u:p@localhost:5432/t").Name())
}

func TestInit_SQLiteMemory(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{DSN: "file:db_init_test?mode=memory&cache=shared"}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	assert.True(t, gormDB.Migrator().HasTable(&model.KVEntry{}))
	assert.True(t, gormDB.Migrator().HasTable(&model.PushSubscription{}))
}
