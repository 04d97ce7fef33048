package procattr

import (
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCreatesProcessGroup(t *testing.T) {
	t.Parallel()
	cmd := exec.Command("true")
	require.Nil(t, cmd.SysProcAttr)

	Set(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestSignalGroupNilProcess(t *testing.T) {
	t.Parallel()
	assert.NoError(t, SignalGroup(nil, syscall.SIGTERM))
	assert.NoError(t, KillGroup(nil))
}

func TestSignalGroupTerminates(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sleep", "60")
	Set(cmd)
	require.NoError(t, cmd.Start())

	require.NoError(t, SignalGroup(cmd.Process, syscall.SIGTERM))
	_ = cmd.Wait()
}

func TestKillGroupTerminates(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sleep", "60")
	Set(cmd)
	require.NoError(t, cmd.Start())

	require.NoError(t, KillGroup(cmd.Process))
	_ = cmd.Wait()
}
