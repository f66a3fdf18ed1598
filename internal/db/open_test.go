package db

import (
	"testing"

	"marketplace/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	gdb, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	for _, m := range Models() {
		require.True(t, gdb.Migrator().HasTable(m))
	}
	require.True(t, gdb.Migrator().HasIndex(&domain.Transaction{}, "idx_transactions_wallet_created"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	require.Error(t, err)
}
