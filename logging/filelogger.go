package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/op-soltest/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	SummaryFilename    = "summary.log"
	SuiteLogExtension  = ".log"
)

// ResultSink is an interface for different ways of consuming suite results
type ResultSink interface {
	// Consume processes a single suite result
	Consume(result *types.RunResult, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// FileLogger writes the output of each suite, and a summary of the run,
// into a per-run directory under baseDir.
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of the current run
	summaryFile  string                // Path to the summary file
	mu           sync.Mutex            // Protects concurrent file operations
	sinks        []ResultSink          // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string                // Current run ID
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates the run directory <baseDir>/testrun-<runID>.
func NewFileLogger(baseDir string, runID string, network types.Network) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", logDir, err)
	}

	logger := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		summaryFile:  filepath.Join(logDir, SummaryFilename),
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}
	logger.sinks = append(logger.sinks, &SummaryFileSink{logger: logger, network: network})

	return logger, nil
}

func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}

	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close()
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// SuiteWriter opens the log file for a suite. Everything written to it is
// stored with ANSI escape sequences removed. The caller must Close it.
func (l *FileLogger) SuiteWriter(suite string) (io.WriteCloser, error) {
	if suite == "" {
		return nil, fmt.Errorf("suite name cannot be empty")
	}
	path := l.GetSuiteLogFile(suite)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create suite log %s: %w", path, err)
	}
	return &strippingWriter{dst: file}, nil
}

// LogResult feeds a suite result to all registered sinks.
func (l *FileLogger) LogResult(result *types.RunResult) error {
	for _, sink := range l.sinks {
		if err := sink.Consume(result, l.runID); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// LogSummary appends a free-form line to the summary file.
func (l *FileLogger) LogSummary(summary string) error {
	writer, err := l.getAsyncWriter(l.summaryFile)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(summary, "\n") {
		summary += "\n"
	}
	return writer.Write([]byte(summary))
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete() error {
	for _, sink := range l.sinks {
		if err := sink.Complete(l.runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}
	l.closeAllWriters()
	return nil
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetDirectory returns the directory of the current run
func (l *FileLogger) GetDirectory() string {
	return l.logDir
}

// GetSummaryFile returns the path to the summary file
func (l *FileLogger) GetSummaryFile() string {
	return l.summaryFile
}

// GetSuiteLogFile returns the path of the log file for a suite
func (l *FileLogger) GetSuiteLogFile(suite string) string {
	return filepath.Join(l.logDir, safeFilename(suite)+SuiteLogExtension)
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	return strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"...", "",
	).Replace(s)
}

// SummaryFileSink writes one line per suite result to summary.log
type SummaryFileSink struct {
	logger  *FileLogger
	network types.Network

	mu     sync.Mutex
	passed int
	failed int
}

// Consume appends the result line to summary.log
func (s *SummaryFileSink) Consume(result *types.RunResult, runID string) error {
	s.mu.Lock()
	if result.Succeeded() {
		s.passed++
	} else {
		s.failed++
	}
	s.mu.Unlock()

	line := fmt.Sprintf("%-6s %-40s exit=%-4d duration=%s log=%s\n",
		strings.ToUpper(string(result.Status())),
		result.Suite,
		result.ExitCode,
		formatDuration(result.Duration),
		filepath.Base(s.logger.GetSuiteLogFile(result.Suite)))
	return s.logger.LogSummary(line)
}

// Complete writes the totals footer
func (s *SummaryFileSink) Complete(runID string) error {
	s.mu.Lock()
	passed, failed := s.passed, s.failed
	s.mu.Unlock()

	return s.logger.LogSummary(fmt.Sprintf("\nrun %s on %s: %d passed, %d failed\n", runID, s.network, passed, failed))
}

// strippingWriter buffers partial lines so escape sequences split across
// writes are still removed.
type strippingWriter struct {
	mu      sync.Mutex
	dst     io.WriteCloser
	pending []byte
}

func (w *strippingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	idx := bytes.LastIndexByte(w.pending, '\n')
	if idx < 0 {
		return len(p), nil
	}
	complete := w.pending[:idx+1]
	if _, err := io.WriteString(w.dst, stripansi.Strip(string(complete))); err != nil {
		return 0, err
	}
	w.pending = append(w.pending[:0], w.pending[idx+1:]...)
	return len(p), nil
}

func (w *strippingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) > 0 {
		_, _ = io.WriteString(w.dst, stripansi.Strip(string(w.pending)))
		w.pending = nil
	}
	return w.dst.Close()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
