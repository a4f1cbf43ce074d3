//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// IsRunning checks if the PID file exists and the process is alive.
// The state is returned whenever the file could be read.
func (p *PIDFile) IsRunning() (*State, bool) {
	st, err := p.Read()
	if err != nil {
		return nil, false
	}
	// Signal 0 tests if the process exists without sending a signal.
	err = syscall.Kill(st.PID, 0)
	return st, err == nil
}

// Signal sends the given signal to the process in the PID file.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	st, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return syscall.Kill(st.PID, sig)
}
