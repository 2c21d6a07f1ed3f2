package migrate

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSource_EmbedsInitMigration(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), first)

	up, ident, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	require.Equal(t, "init", ident)

	body, err := io.ReadAll(up)
	require.NoError(t, err)
	for _, table := range []string{"users", "refresh_tokens", "password_resets"} {
		require.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table)
	}

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	require.NoError(t, down.Close())

	_, err = src.Next(first)
	require.ErrorIs(t, err, os.ErrNotExist)
}
