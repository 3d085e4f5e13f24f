package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db",
		Port:     "5432",
		User:     "orders",
		Password: "secret",
		DBName:   "payments",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}
	assert.Equal(t, "host=db user=orders password=secret dbname=payments port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
