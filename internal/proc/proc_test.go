//go:build linux

package proc

import (
	"errors"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	gps "github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_MergedOutput(t *testing.T) {
	p, err := Start(exec.Command("/bin/sh", "-c", "echo out; echo err 1>&2"), Options{})
	require.NoError(t, err)
	defer p.Close()

	b, err := io.ReadAll(p.Output())
	require.NoError(t, err)
	require.NoError(t, p.Wait())
	assert.Contains(t, string(b), "out\n")
	assert.Contains(t, string(b), "err\n")
}

func TestStart_OwnProcessGroup(t *testing.T) {
	p, err := Start(exec.Command("/bin/sh", "-c", "sleep 5"), Options{})
	require.NoError(t, err)
	defer func() {
		_ = p.Kill()
		_ = p.Wait()
		_ = p.Close()
	}()

	pgid, err := syscall.Getpgid(p.Pid())
	require.NoError(t, err)
	assert.Equal(t, p.Pid(), pgid, "child should lead its own process group")
	assert.NotEqual(t, syscall.Getpgrp(), pgid)
}

func TestNative_SuspendResumeTerminate(t *testing.T) {
	p, err := Start(exec.Command("/bin/sh", "-c", "sleep 30"), Options{})
	require.NoError(t, err)
	defer p.Close()
	require.True(t, p.CanSuspend())

	ps, err := gps.NewProcess(int32(p.Pid()))
	require.NoError(t, err)

	require.NoError(t, p.Suspend())
	assert.Eventually(t, func() bool { return hasStatus(ps, gps.Stop) }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, p.Resume())
	assert.Eventually(t, func() bool { return !hasStatus(ps, gps.Stop) }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, p.Terminate())
	err = p.Wait()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "terminated process should report an exit error, got %v", err)
}

func TestDrainOnly(t *testing.T) {
	p, err := Start(exec.Command("/bin/sh", "-c", "sleep 30"), Options{DrainOnly: true})
	require.NoError(t, err)
	defer p.Close()

	assert.False(t, p.CanSuspend())
	assert.ErrorIs(t, p.Suspend(), ErrSuspendUnsupported)
	assert.ErrorIs(t, p.Resume(), ErrSuspendUnsupported)
	require.NoError(t, p.Terminate())
	assert.Error(t, p.Wait())
	assert.Error(t, p.Wait(), "Wait is repeatable")
}

func TestStart_MissingBinary(t *testing.T) {
	_, err := Start(exec.Command("/nonexistent/HandBrakeCLI"), Options{})
	require.Error(t, err)
}

func TestClose_UnblocksRead(t *testing.T) {
	p, err := Start(exec.Command("/bin/sh", "-c", "sleep 30"), Options{})
	require.NoError(t, err)
	defer func() {
		_ = p.Kill()
		_ = p.Wait()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(p.Output())
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock after Close")
	}
}

func hasStatus(p *gps.Process, want string) bool {
	st, err := p.Status()
	if err != nil {
		return false
	}
	return strings.Contains(strings.Join(st, ","), want)
}
