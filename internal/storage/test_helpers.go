package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/defi-common/internal/config"
	"github.com/defi-common/internal/models"
	"github.com/defi-common/internal/types"
	"github.com/stretchr/testify/require"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// testConfig builds a pool config for TEST_DB_URL, skipping the test when it is unset
func testConfig(t *testing.T) *config.PostgresConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := os.Getenv(config.EnvTestDBURL)
	if url == "" {
		t.Skipf("Skipping test - %s not set", config.EnvTestDBURL)
	}
	return &config.PostgresConfig{
		TestURL:        url,
		MaxConnections: 4,
		ConnectTimeout: 5 * time.Second,
		Environment:    types.EnvTest,
	}
}

// newTestDB connects to the test database and resets the schema
func newTestDB(t *testing.T) *PostgresDB {
	t.Helper()
	cfg := testConfig(t)
	ctx := testContext(t)

	db, err := NewPostgresDB(ctx, cfg, TargetTest)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, db.InitializeSchema(ctx))
	return db
}

// createTestAddress inserts an address through the pool
func createTestAddress(t *testing.T, db *PostgresDB, address string, chain types.ChainID) *models.Address {
	t.Helper()
	a := &models.Address{Address: address, BlockchainType: string(chain)}
	require.NoError(t, NewAddressRepository(db.Pool()).Create(testContext(t), a))
	return a
}

func countRows(t *testing.T, db *PostgresDB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Pool().QueryRow(testContext(t), `SELECT count(*) FROM `+table).Scan(&n))
	return n
}
