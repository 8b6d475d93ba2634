package db

import (
	"testing"
	"time"

	"bopus/config"

	sqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "127.0.0.1",
		DBPort:     "3306",
		DBUser:     "bopus",
		DBPassword: "p@ss/word",
		DBName:     "bopus",
	}

	dsn := BuildDSN(cfg)
	parsed, err := sqldriver.ParseDSN(dsn)
	require.NoError(t, err)

	assert.Equal(t, "bopus", parsed.User)
	assert.Equal(t, "p@ss/word", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "127.0.0.1:3306", parsed.Addr)
	assert.Equal(t, "bopus", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, time.Local, parsed.Loc)
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestCloseWithoutConnection(t *testing.T) {
	GormDB = nil
	assert.NoError(t, CloseGormDB())
}
