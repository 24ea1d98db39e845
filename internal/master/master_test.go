package master_test

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/master"
)

func TestIsWorkerProcess(t *testing.T) {
	require.NoError(t, os.Unsetenv(master.EnvWorkerFlag))
	require.False(t, master.IsWorkerProcess())

	require.NoError(t, os.Setenv(master.EnvWorkerFlag, "1"))
	defer func() { _ = os.Unsetenv(master.EnvWorkerFlag) }()
	require.True(t, master.IsWorkerProcess())
}

func TestWorkerIndex(t *testing.T) {
	require.NoError(t, os.Setenv(master.EnvWorkerIndex, "3"))
	defer func() { _ = os.Unsetenv(master.EnvWorkerIndex) }()
	require.Equal(t, 3, master.WorkerIndex())
}

func TestNewReusePortListenerTwoProcessesCanBind(t *testing.T) {
	ln1, err := master.NewReusePortListener(0)
	require.Nil(t, err)
	defer func() { _ = ln1.Close() }()

	port := ln1.Addr().(*net.TCPAddr).Port

	ln2, err := master.NewReusePortListener(port)
	require.Nil(t, err)
	defer func() { _ = ln2.Close() }()
}
