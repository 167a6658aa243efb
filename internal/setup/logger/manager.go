package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robalyx/sentinel/internal/setup/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const sessionLayout = "2006-01-02_15-04-05"

// Manager owns the log directory layout. Each run writes into a timestamped
// session directory and mirrors every file into latest/.
type Manager struct {
	logDir        string
	sessionDir    string
	level         string
	maxLogsToKeep int
	maxLogLines   int
	writers       []*LogRotator
}

// NewManager creates a new Manager instance.
func NewManager(logDir string, cfg *config.Debug) *Manager {
	return &Manager{
		logDir:        logDir,
		level:         cfg.LogLevel,
		maxLogsToKeep: cfg.MaxLogsToKeep,
		maxLogLines:   cfg.MaxLogLines,
	}
}

// GetLoggers prepares the session directories and returns the main
// application logger and the storage logger.
func (m *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := m.prepareSession(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := m.newLogger("main")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	storageLogger, err := m.newLogger("storage")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage logger: %w", err)
	}

	return mainLogger, storageLogger, nil
}

// SessionDir returns the directory of the current run.
func (m *Manager) SessionDir() string {
	return m.sessionDir
}

// Close flushes and closes every log file opened by the manager.
func (m *Manager) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Sync(); err != nil {
			errs = append(errs, err)
		}

		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	m.writers = nil

	return errors.Join(errs...)
}

// prepareSession prunes old sessions and creates the directories for this run.
func (m *Manager) prepareSession() error {
	if err := os.MkdirAll(m.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := m.pruneSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	m.sessionDir = filepath.Join(m.logDir, time.Now().Format(sessionLayout))
	if err := os.MkdirAll(m.sessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// Another process may still hold files in latest/
	latestDir := filepath.Join(m.logDir, "latest")
	_ = os.RemoveAll(latestDir)

	if err := os.MkdirAll(latestDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create latest directory: %w", err)
	}

	return nil
}

// newLogger builds a console-encoded logger writing name.log into the
// session directory and latest/.
func (m *Manager) newLogger(name string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(m.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	paths := []string{
		filepath.Join(m.sessionDir, name+".log"),
		filepath.Join(m.logDir, "latest", name+".log"),
	}

	cores := make([]zapcore.Core, 0, len(paths))
	for _, path := range paths {
		writer, err := NewLogRotator(path, m.maxLogLines)
		if err != nil {
			return nil, err
		}

		m.writers = append(m.writers, writer)
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), level))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Development(),
	), nil
}

// pruneSessions removes the oldest session directories beyond maxLogsToKeep.
func (m *Manager) pruneSessions() error {
	entries, err := filepath.Glob(filepath.Join(m.logDir, "*"))
	if err != nil {
		return err
	}

	sessions := entries[:0]
	for _, entry := range entries {
		if filepath.Base(entry) != "latest" {
			sessions = append(sessions, entry)
		}
	}

	if len(sessions) <= m.maxLogsToKeep {
		return nil
	}

	modTimes := make(map[string]time.Time, len(sessions))
	for _, session := range sessions {
		if info, err := os.Stat(session); err == nil {
			modTimes[session] = info.ModTime()
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return modTimes[sessions[i]].Before(modTimes[sessions[j]])
	})

	for _, session := range sessions[:len(sessions)-m.maxLogsToKeep] {
		if err := os.RemoveAll(session); err != nil {
			return err
		}
	}

	return nil
}
