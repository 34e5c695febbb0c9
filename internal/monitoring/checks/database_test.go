package checks

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolSaturated(t *testing.T) {
	require.False(t, poolSaturated(sql.DBStats{}))
	require.False(t, poolSaturated(sql.DBStats{MaxOpenConnections: 4, InUse: 4}))
	require.False(t, poolSaturated(sql.DBStats{MaxOpenConnections: 4, InUse: 2, WaitCount: 9}))
	require.True(t, poolSaturated(sql.DBStats{MaxOpenConnections: 4, InUse: 4, WaitCount: 1}))

	require.Equal(t, "open=3 in_use=1 idle=2 waiting=0",
		poolSummary(sql.DBStats{OpenConnections: 3, InUse: 1, Idle: 2}))
}
