package supervisor

import (
	"os/exec"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Handle is a started node bootstrap process. It is owned by whoever called
// Supervisor.Start and released with Stop.
type Handle struct {
	cmd *exec.Cmd
	log log.Logger

	ready     chan struct{}
	readyOnce sync.Once

	done    chan struct{}
	exitErr error

	mu    sync.Mutex
	state State

	stopOnce sync.Once
}

func newHandle(cmd *exec.Cmd, logger log.Logger) *Handle {
	return &Handle{
		cmd:   cmd,
		log:   logger,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		state: StateStarting,
	}
}

// markReady settles the readiness signal. Only the first call has an effect.
func (h *Handle) markReady() {
	h.readyOnce.Do(func() {
		close(h.ready)
	})
}

func (h *Handle) setExited(err error) {
	h.mu.Lock()
	h.exitErr = err
	h.mu.Unlock()
	close(h.done)
}

// transition moves from one state to another and reports whether the
// handle was in the expected state.
func (h *Handle) transition(from, to State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return false
	}
	h.state = to
	return true
}

// State returns the current state of the handle.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Pid returns the OS process id of the bootstrap process.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Done is closed once the bootstrap process has exited and its output is drained.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitErr returns the error from waiting on the process, once it has exited.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Stop signals the node to terminate. It is idempotent and does not wait
// for the process to exit. A ready handle moves to StateTerminated; a
// failed handle stays failed.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.transition(StateReady, StateTerminated)

		select {
		case <-h.done:
			h.log.Debug("Node process already exited", "pid", h.Pid())
			return
		default:
		}

		h.log.Info("Stopping node process", "pid", h.Pid())
		if err := terminate(h.cmd); err != nil {
			h.log.Warn("Failed to signal node process", "pid", h.Pid(), "err", err)
		}
	})
}
