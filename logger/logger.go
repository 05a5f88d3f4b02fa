package logger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLogLines caps the log file; older lines are dropped on rotation.
const MaxLogLines = 5000

type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel maps a config string to a level, defaulting to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LimitedLogger is a leveled logger over a single file with line-count
// rotation, so a long-lived daemon cannot grow its log without bound.
type LimitedLogger struct {
	file      *os.File
	lineCount int
	level     LogLevel
	mutex     sync.Mutex
}

var globalLogger *LimitedLogger

// defaultLogger covers log calls made before Init (client mode, early startup).
var defaultLogger = &LimitedLogger{file: os.Stderr, level: LogLevelInfo}

// Init installs the global logger writing to file at the given level.
func Init(file *os.File, level LogLevel) *LimitedLogger {
	ll := &LimitedLogger{file: file, level: level}
	ll.countExistingLines()
	globalLogger = ll
	return ll
}

func active() *LimitedLogger {
	if globalLogger != nil {
		return globalLogger
	}
	return defaultLogger
}

// SetGlobalLevel adjusts the level on the global logger, if installed.
func SetGlobalLevel(level LogLevel) {
	if globalLogger != nil {
		globalLogger.mutex.Lock()
		globalLogger.level = level
		globalLogger.mutex.Unlock()
	}
}

// Trace returns a function that logs the operation duration when called.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	ll := active()
	if !ll.shouldLog(LogLevelTrace) {
		return func() {}
	}
	start := time.Now()
	return func() {
		ll.logWithLevel(LogLevelTrace, "%s: %v", name, time.Since(start))
	}
}

func Debug(format string, v ...any) { active().logWithLevel(LogLevelDebug, format, v...) }
func Info(format string, v ...any)  { active().logWithLevel(LogLevelInfo, format, v...) }
func Warn(format string, v ...any)  { active().logWithLevel(LogLevelWarn, format, v...) }
func Error(format string, v ...any) { active().logWithLevel(LogLevelError, format, v...) }

// Fatal logs at ERROR and exits with code 1.
func Fatal(format string, v ...any) {
	active().logWithLevel(LogLevelError, format, v...)
	os.Exit(1)
}

func (ll *LimitedLogger) shouldLog(level LogLevel) bool {
	return level >= ll.level
}

func (ll *LimitedLogger) logWithLevel(level LogLevel, format string, v ...any) {
	if !ll.shouldLog(level) {
		return
	}
	msg := fmt.Sprintf("%s [%s] %s\n", time.Now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, v...))
	ll.Write([]byte(msg))
}

// Write implements io.Writer so the logger can back log.Logger instances
// (the nvim client takes a log function; the daemon wires it through here).
func (ll *LimitedLogger) Write(p []byte) (n int, err error) {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	n, err = ll.file.Write(p)
	if err != nil {
		return n, err
	}

	ll.lineCount += strings.Count(string(p), "\n")
	if ll.lineCount > MaxLogLines {
		ll.rotate()
	}
	return n, err
}

func (ll *LimitedLogger) countExistingLines() {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	ll.file.Seek(0, 0)
	scanner := bufio.NewScanner(ll.file)
	count := 0
	for scanner.Scan() {
		count++
	}
	ll.lineCount = count
	ll.file.Seek(0, 2)
}

// rotate trims the file to the last MaxLogLines lines in place.
func (ll *LimitedLogger) rotate() {
	ll.file.Seek(0, 0)
	scanner := bufio.NewScanner(ll.file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > MaxLogLines {
		lines = lines[len(lines)-MaxLogLines:]
	}

	ll.file.Truncate(0)
	ll.file.Seek(0, 0)
	for _, line := range lines {
		ll.file.WriteString(line + "\n")
	}
	ll.lineCount = len(lines)
}

func (ll *LimitedLogger) Close() error {
	return ll.file.Close()
}
