package power

import (
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
)

// Lock holds the system awake while a transfer is in flight.
type Lock interface {
	Release()
}

// Acquire takes a best-effort sleep inhibitor for the duration of a
// transfer. Platforms without a known mechanism, and any failure to start
// one, yield a no-op lock; absence of the capability is tolerated silently.
func Acquire() Lock {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("caffeinate", "-dims")
	case "linux":
		cmd = exec.Command("systemd-inhibit",
			"--what=sleep:idle", "--who=beamdrop", "--why=file transfer in progress",
			"sleep", "infinity")
	default:
		return noopLock{}
	}

	if err := cmd.Start(); err != nil {
		slog.Debug("sleep inhibitor unavailable", "err", err)
		return noopLock{}
	}
	return &processLock{cmd: cmd}
}

type noopLock struct{}

func (noopLock) Release() {}

type processLock struct {
	once sync.Once
	cmd  *exec.Cmd
}

func (l *processLock) Release() {
	l.once.Do(func() {
		if l.cmd.Process != nil {
			_ = l.cmd.Process.Kill()
			_ = l.cmd.Wait()
		}
	})
}
