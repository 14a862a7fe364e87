package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/op-soltest/metrics"
	"github.com/ethereum-optimism/infra/op-soltest/types"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultReadinessMarker is printed by eidond once its JSON-RPC server
	// is listening. It is a contract with the bootstrap script.
	DefaultReadinessMarker = "Starting JSON-RPC server"

	// DefaultStartupTimeout bounds how long Start waits for the marker.
	DefaultStartupTimeout = 50 * time.Second

	// Lines longer than the read buffer are scanned in fragments.
	readBufferSize = 64 * 1024
	// Bytes of the previous fragment kept when matching across a fragment
	// boundary, on top of the marker length, to cover colour codes.
	markerSlack = 32
)

// ErrStartupTimeout is returned by Start when the readiness marker was not
// observed within the configured timeout.
var ErrStartupTimeout = errors.New("start node timeout")

// SpawnError is returned by Start when the bootstrap process could not be created.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn node bootstrap %q: %v", e.Command, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Config holds configuration for creating a new Supervisor
type Config struct {
	Log             log.Logger
	Network         types.Network // label for metrics
	Command         string        // bootstrap command, e.g. ../e2e/init-node.sh
	Args            []string
	Dir             string // working directory of the bootstrap command
	ReadinessMarker string
	Timeout         time.Duration
	Verbose         bool      // forward node output to Stdout/Stderr
	Stdout          io.Writer // defaults to os.Stdout
	Stderr          io.Writer // defaults to os.Stderr
	RPCURL          string    // optional JSON-RPC endpoint probed after readiness
}

// Supervisor boots a node through its bootstrap command.
type Supervisor struct {
	config Config
	tracer trace.Tracer
}

// New creates a Supervisor, filling in defaults for optional fields.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Command == "" {
		return nil, errors.New("bootstrap command is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.ReadinessMarker == "" {
		cfg.ReadinessMarker = DefaultReadinessMarker
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultStartupTimeout
	}
	if cfg.Network == "" {
		cfg.Network = types.NetworkEidonChain
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	return &Supervisor{
		config: cfg,
		tracer: otel.Tracer("node supervisor"),
	}, nil
}

// Start spawns the bootstrap command and blocks until the readiness marker
// appears on its stdout or stderr, the timeout elapses, or ctx is done.
//
// Whenever the process was spawned the returned Handle is non-nil, also on
// error, and the caller owns it: Stop must be called on every path. On
// failure Start has already signalled the process to terminate.
func (s *Supervisor) Start(ctx context.Context) (*Handle, error) {
	ctx, span := s.tracer.Start(ctx, "node bootstrap")
	defer span.End()

	cmd := exec.Command(s.config.Command, s.config.Args...)
	cmd.Dir = s.config.Dir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: s.config.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Command: s.config.Command, Err: err}
	}

	s.config.Log.Info("Starting node process...", "cmd", s.config.Command, "timeout", s.config.Timeout)
	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.RecordNodeStartup(s.config.Network, false, time.Since(startTime))
		return nil, &SpawnError{Command: s.config.Command, Err: err}
	}

	h := newHandle(cmd, s.config.Log)

	// Buffered so that a goroutine crashing after Start returned never blocks.
	crashed := make(chan error, 3)

	var scanners sync.WaitGroup
	scanners.Add(2)
	go func() {
		defer scanners.Done()
		defer s.recoverInto(crashed, "stdout scanner", stdout)
		s.scan(stdout, s.config.Stdout, h.markReady)
	}()
	go func() {
		defer scanners.Done()
		defer s.recoverInto(crashed, "stderr scanner", stderr)
		s.scan(stderr, s.config.Stderr, h.markReady)
	}()
	go func() {
		// Wait must not be called before all reads from the pipes are done.
		scanners.Wait()
		var waitErr error
		defer func() {
			if r := recover(); r != nil {
				waitErr = fmt.Errorf("node process wait panicked: %v", r)
				crashed <- waitErr
			}
			h.setExited(waitErr)
		}()
		waitErr = cmd.Wait()
	}()

	timer := time.NewTimer(s.config.Timeout)
	defer timer.Stop()

	exited := h.Done()
	for {
		select {
		case <-h.ready:
			h.transition(StateStarting, StateReady)
			elapsed := time.Since(startTime)
			metrics.RecordNodeStartup(s.config.Network, true, elapsed)
			s.config.Log.Info("eidond started", "pid", h.Pid(), "elapsed", elapsed)
			s.probe(ctx)
			return h, nil

		case <-exited:
			// Keep waiting: the marker may still be in flight, and readiness
			// is only decided by the marker or the timeout.
			s.config.Log.Warn("Node bootstrap process exited before readiness", "pid", h.Pid(), "err", h.ExitErr())
			exited = nil

		case err := <-crashed:
			return h, s.fail(h, startTime, err)

		case <-timer.C:
			return h, s.fail(h, startTime, fmt.Errorf("%w after %s", ErrStartupTimeout, s.config.Timeout))

		case <-ctx.Done():
			return h, s.fail(h, startTime, fmt.Errorf("node bootstrap interrupted: %w", ctx.Err()))
		}
	}
}

func (s *Supervisor) fail(h *Handle, startTime time.Time, err error) error {
	h.transition(StateStarting, StateFailed)
	metrics.RecordNodeStartup(s.config.Network, false, time.Since(startTime))
	h.Stop()
	return err
}

// recoverInto turns a panic in an output goroutine into an error on crashed
// and keeps draining r so the node never blocks on a full pipe.
func (s *Supervisor) recoverInto(crashed chan<- error, name string, r io.Reader) {
	if p := recover(); p != nil {
		err := fmt.Errorf("node %s panicked: %v", name, p)
		s.config.Log.Debug("Node output handling failed", "err", err)
		metrics.RecordErrorDetails("node_output", err)
		crashed <- err
		_, _ = io.Copy(io.Discard, r)
	}
}

// scan reads r line by line, forwarding every line when verbose and calling
// onReady for each line containing the readiness marker. Lines of any length
// are checked: long lines arrive in fragments and the tail of the previous
// fragment is kept so a marker split across fragments still matches. It
// drains r to EOF so the node never blocks on a full pipe.
func (s *Supervisor) scan(r io.Reader, forward io.Writer, onReady func()) {
	reader := bufio.NewReaderSize(r, readBufferSize)
	marker := s.config.ReadinessMarker
	overlap := len(marker) + markerSlack
	var carry []byte

	for {
		fragment, isPrefix, err := reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.config.Log.Debug("Stopped scanning node output", "err", err)
			}
			return
		}

		if s.config.Verbose {
			_, _ = forward.Write(fragment)
			if !isPrefix {
				_, _ = io.WriteString(forward, "\n")
			}
		}

		window := append(carry, fragment...)
		if strings.Contains(stripansi.Strip(string(window)), marker) {
			onReady()
		}

		carry = carry[:0]
		if isPrefix {
			carry = append(carry, window[max(0, len(window)-overlap):]...)
		}
	}
}

// probe logs the chain ID served by the node when an RPC URL is configured.
// A failed probe does not affect readiness.
func (s *Supervisor) probe(ctx context.Context) {
	if s.config.RPCURL == "" {
		return
	}
	chainID, err := probeChainID(ctx, s.config.RPCURL)
	if err != nil {
		s.config.Log.Warn("Node RPC probe failed", "url", s.config.RPCURL, "err", err)
		metrics.RecordErrorDetails("rpc_probe", err)
		return
	}
	s.config.Log.Info("Node RPC reachable", "url", s.config.RPCURL, "chain_id", chainID)
}
