//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// IsRunning checks if the PID file exists and the process is alive.
// On Windows, uses os.FindProcess + a zero signal equivalent.
func (p *PIDFile) IsRunning() (*State, bool) {
	st, err := p.Read()
	if err != nil {
		return nil, false
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return st, false
	}
	err = proc.Signal(syscall.Signal(0))
	return st, err == nil
}

// Signal sends the given signal to the process in the PID file.
// On Windows, only SIGKILL (os.Kill) is reliably supported.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	st, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", st.PID, err)
	}
	return proc.Signal(sig)
}
