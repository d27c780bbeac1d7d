package migrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"crewline/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, Migrate(conn))
	require.NoError(t, Migrate(conn))

	st, err := GetStatus(conn)
	require.NoError(t, err)
	require.False(t, st.Dirty)
	require.False(t, st.Pending)
	require.Equal(t, st.LatestVersion, st.CurrentVersion)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='task_dependencies'`).Scan(&n))
	require.Equal(t, 1, n)
}
