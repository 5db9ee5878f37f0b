package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rameshbgm/belgaum-today-sub000/config"
)

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, zap.NewNop())
	assert.Error(t, err)
}

func TestParseGormLevel(t *testing.T) {
	assert.Equal(t, gormLogger.Silent, parseGormLevel("silent"))
	assert.Equal(t, gormLogger.Error, parseGormLevel("error"))
	assert.Equal(t, gormLogger.Info, parseGormLevel("debug"))
	assert.Equal(t, gormLogger.Warn, parseGormLevel("warning"))
}
