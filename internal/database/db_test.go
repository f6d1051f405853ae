package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramtunguturi36/cvb/internal/config"
)

func TestDSN(t *testing.T) {
	t.Parallel()

	dsn := DSN(config.Config{
		DBUser: "cvb",
		DBPass: "s3cret",
		DBHost: "db.internal",
		DBPort: "3307",
		DBName: "videos",
	})

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "cvb", parsed.User)
	assert.Equal(t, "s3cret", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "videos", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "UTC", parsed.Loc.String())
}
