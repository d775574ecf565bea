package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/config"
)

func TestNewBootstrapsAndReopens(t *testing.T) {
	cfg := config.DefaultTestConfig()
	cfg.DataDirParent = t.TempDir()

	first, err := New(cfg)
	require.NoError(t, err)
	require.NotEqual(t, types.Address{}, first.Address())

	head, headID := first.Head()
	require.Equal(t, types.Height(0), head)
	require.NotEqual(t, types.BlockID{}, headID)

	balance, err := first.Balance(first.Address())
	require.NoError(t, err)
	require.Zero(t, balance)

	// A second start over the same data dir loads the persisted identity
	// and the bootstrapped chain instead of recreating them.
	second, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, first.Address(), second.Address())
	reHead, reHeadID := second.Head()
	require.Equal(t, head, reHead)
	require.Equal(t, headID, reHeadID)
}
