package postgres

import (
	"testing"

	"github.com/sifan077/tinyurl/config"
	"github.com/stretchr/testify/assert"
)

func TestConnString(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PostgresConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  config.PostgresConfig{Database: "tinyurl"},
			want: "postgres://localhost:5432/tinyurl?sslmode=disable",
		},
		{
			name: "credentials are escaped",
			cfg: config.PostgresConfig{
				Host: "db", Port: 6543, User: "app", Password: "p@ss/word", Database: "tinyurl", SSLMode: "require",
			},
			want: "postgres://app:p%40ss%2Fword@db:6543/tinyurl?sslmode=require",
		},
		{
			name: "user without password",
			cfg:  config.PostgresConfig{User: "app", Database: "tinyurl"},
			want: "postgres://app@localhost:5432/tinyurl?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConnString(tt.cfg))
		})
	}
}

func TestToMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://app@db:5432/x?sslmode=disable", toMigrateURL("postgres://app@db:5432/x?sslmode=disable"))
	assert.Equal(t, "pgx5://db/x", toMigrateURL("postgresql://db/x"))
}
