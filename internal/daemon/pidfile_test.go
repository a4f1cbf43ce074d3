package daemon

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_WriteStateAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	pf := NewPIDFile(path)

	started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	err := pf.WriteState(&State{PID: 12345, Port: 9090, LogPath: "/tmp/serve.log", StartedAt: started})
	require.NoError(t, err)

	st, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, st.PID)
	assert.Equal(t, 9090, st.Port)
	assert.Equal(t, "/tmp/serve.log", st.LogPath)
	assert.True(t, st.StartedAt.Equal(started))
	assert.Equal(t, "http://localhost:9090", st.URL())
	assert.Equal(t, 90*time.Minute, st.Uptime(started.Add(90*time.Minute+300*time.Millisecond)))
}

func TestPIDFile_Write_CurrentPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "serve.pid")
	pf := NewPIDFile(path)

	err := pf.Write(8080, "")
	require.NoError(t, err)

	st, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, 8080, st.Port)
	assert.False(t, st.StartedAt.IsZero())
}

func TestPIDFile_Read_BareInteger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))

	st, err := NewPIDFile(path).Read()
	require.NoError(t, err)
	assert.Equal(t, 4242, st.PID)
	assert.Empty(t, st.URL())
	assert.Zero(t, st.Uptime(time.Now()))
}

func TestPIDFile_Read_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.pid")
	pf := NewPIDFile(path)

	_, err := pf.Read()
	assert.Error(t, err)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	for _, content := range []string{"not-a-number\n", `{"pid":0}`} {
		path := filepath.Join(t.TempDir(), "bad.pid")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := NewPIDFile(path).Read()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid PID file content")
	}
}

func TestPIDFile_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.WriteState(&State{PID: 1}))

	err := pf.Remove()
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFile_Remove_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.pid")
	assert.Error(t, NewPIDFile(path).Remove())
}

func TestPIDFile_IsRunning_CurrentProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Write(8080, ""))

	st, running := pf.IsRunning()
	assert.True(t, running)
	require.NotNil(t, st)
	assert.Equal(t, os.Getpid(), st.PID)
}

func TestPIDFile_IsRunning_DeadProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	pf := NewPIDFile(path)

	// Use a very high PID that almost certainly doesn't exist.
	require.NoError(t, pf.WriteState(&State{PID: 999999}))

	st, running := pf.IsRunning()
	require.NotNil(t, st, "state is read regardless")
	assert.Equal(t, 999999, st.PID)
	assert.False(t, running)
}

func TestPIDFile_IsRunning_NoFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))

	st, running := pf.IsRunning()
	assert.Nil(t, st)
	assert.False(t, running)
}

func TestPIDFile_Signal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Write(0, ""))

	// Signal 0 just checks if process exists, doesn't actually send a signal.
	err := pf.Signal(syscall.Signal(0))
	assert.NoError(t, err)
}

func TestPIDFile_Signal_NoFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))

	err := pf.Signal(syscall.Signal(0))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read PID file")
}
