package logging

// Leveled logging for labcheck

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// String returns the lower-case level name used in config files and JSON lines.
func (l LogLevel) String() string {
	switch l {
	case LogLevelSilent:
		return "silent"
	case LogLevelError:
		return "error"
	case LogLevelInfo:
		return "info"
	case LogLevelVerbose:
		return "verbose"
	case LogLevelDebug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLogLevel maps a config or flag value to a LogLevel. Empty means info.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "quiet", "off":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "", "info":
		return LogLevelInfo, nil
	case "verbose":
		return LogLevelVerbose, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q (want silent, error, info, verbose or debug)", s)
}

// Logger provides leveled logging
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	format  string
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
	now     func() time.Time
}

// NewLogger creates a new text logger
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	return NewLoggerWithOptions(level, logFile, "text")
}

// NewLoggerWithOptions creates a logger with an output format ("text" or "json").
func NewLoggerWithOptions(level LogLevel, logFile, format string) (*Logger, error) {
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	l := &Logger{
		level:  level,
		format: format,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
		now:    time.Now,
	}

	// Open log file if specified
	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		flags := log.LstdFlags
		if format == "json" {
			flags = 0
		}
		l.fileLog = log.New(file, "", flags)
	}

	return l, nil
}

// NewWriterLogger sends every enabled message to w, errors included. Used to
// embed validator logs in a report or a test buffer.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	out := log.New(w, "", 0)
	return &Logger{
		level:  level,
		format: "text",
		stdout: out,
		stderr: out,
		now:    time.Now,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger(LogLevelSilent, io.Discard)
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(LogLevelError, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(LogLevelInfo, format, v...)
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	l.log(LogLevelVerbose, format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(LogLevelDebug, format, v...)
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	if l == nil || l.GetLevel() < level {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if l.format == "json" {
		l.write(l.jsonLine(level, msg), level == LogLevelError)
		return
	}
	l.write(strings.ToUpper(level.String())+": "+msg, level == LogLevelError)
}

type jsonEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (l *Logger) jsonLine(level LogLevel, msg string) string {
	data, err := json.Marshal(jsonEntry{
		Time:    l.now().UTC().Format(time.RFC3339),
		Level:   level.String(),
		Message: msg,
	})
	if err != nil {
		return msg
	}
	return string(data)
}

// write writes a message to the appropriate outputs
func (l *Logger) write(msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Always write to log file if available
	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}

	// Errors go to stderr, others to stdout only at verbose or debug
	if isError {
		l.stderr.Println(msg)
	} else if l.level >= LogLevelVerbose {
		l.stdout.Println(msg)
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogCheck records the outcome of one validation check.
func (l *Logger) LogCheck(name string, passed bool, detail string) {
	status := "PASS"
	if !passed {
		status = "FAIL"
	}
	if detail != "" {
		l.Verbose("check %-16s %s (%s)", name, status, detail)
		return
	}
	l.Verbose("check %-16s %s", name, status)
}

// LogStartup logs the inputs of a validation run
func (l *Logger) LogStartup(challengePath, evidencePath, capturePath string, week int, configPath string) {
	l.Info("Starting labcheck validation")
	l.Verbose("  Challenge: %s", challengePath)
	l.Verbose("  Evidence: %s", evidencePath)
	l.Verbose("  Capture: %s", capturePath)
	l.Verbose("  Expected week: %d", week)
	if configPath != "" {
		l.Verbose("  Config: %s", configPath)
	}
}

// LogHex logs hex data (for debug level)
func (l *Logger) LogHex(label string, data []byte) {
	if l == nil || l.GetLevel() < LogLevelDebug {
		return
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	l.Debug("%s: %s", label, strings.Join(parts, " "))
}
