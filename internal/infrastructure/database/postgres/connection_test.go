// Package postgres_test provides black-box unit tests for the PostgreSQL
// connection management functionality that do not require a live database.
// Integration tests requiring a running PostgreSQL instance live in
// connection_integration_test.go, gated by the "integration" build tag.
package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tagwalker/tagwalker/internal/infrastructure/database/postgres"
)

func TestHealthCheck_NilPool(t *testing.T) {
	err := postgres.HealthCheck(context.Background(), nil)
	assert.Error(t, err)
}

func TestClose_NilPool(t *testing.T) {
	assert.NotPanics(t, func() {
		postgres.Close(nil)
	})
}
