package db

import (
	"testing"

	"github.com/smallbiznis/happyinline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	cases := []struct {
		dbType string
		name   string
		ok     bool
	}{
		{dbType: "postgres", name: "postgres", ok: true},
		{dbType: " SQLite ", name: "sqlite", ok: true},
		{dbType: "mysql"},
		{dbType: ""},
	}
	for _, tc := range cases {
		t.Run(tc.dbType, func(t *testing.T) {
			d, err := Dialect(config.Config{DBType: tc.dbType, DBName: "happyinline_test.db"})
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.name, d.Name())
		})
	}
}
