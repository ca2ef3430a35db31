// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the level tag used in log prefixes.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names return INFO and false.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG, true
	case "info", "":
		return INFO, true
	case "warn", "warning":
		return WARN, true
	case "error":
		return ERROR, true
	default:
		return INFO, false
	}
}

type levelWriters struct {
	color, plain *log.Logger
}

type Logger struct {
	writers       map[LogLevel]levelWriters
	file          *os.File
	consoleOutput io.Writer
	fileOutput    io.Writer
	minLevel      LogLevel
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.RWMutex
)

var levelColors = map[LogLevel]string{
	DEBUG: colorGray,
	INFO:  colorReset,
	WARN:  colorYellow,
	ERROR: colorRed,
}

// ensureInitialized creates a console logger at DEBUG if Init was never called.
func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = &Logger{consoleOutput: os.Stdout, minLevel: DEBUG}
			defaultLogger.setupLoggers()
		}
	})
}

// Options controls where log lines go.
type Options struct {
	Filename string    // append plain lines to this file when set
	Console  io.Writer // colored lines go here; nil disables console output
	Level    LogLevel
}

// Init replaces the process logger. At least one destination is required.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
	}

	l := &Logger{minLevel: opts.Level, consoleOutput: opts.Console}
	if opts.Filename != "" {
		file, err := os.OpenFile(opts.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = file
		l.fileOutput = file
	}
	if l.fileOutput == nil && l.consoleOutput == nil {
		return fmt.Errorf("no output destination specified")
	}

	l.setupLoggers()
	defaultLogger = l
	return nil
}

// SetLevel sets the minimum log level; lower messages are dropped.
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.minLevel = level
}

func (l *Logger) setupLoggers() {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l.writers = make(map[LogLevel]levelWriters, len(levelColors))

	for level, color := range levelColors {
		tag := fmt.Sprintf("%-8s", "["+level.String()+"]")
		var w levelWriters
		if l.consoleOutput != nil {
			w.color = log.New(l.consoleOutput, color+tag+colorReset, flags)
		}
		if l.fileOutput != nil {
			w.plain = log.New(l.fileOutput, tag, flags)
		}
		l.writers[level] = w
	}
}

// Close closes the log file if one is open.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger.file = nil
		defaultLogger.fileOutput = nil
		defaultLogger.setupLoggers()
	}
}

func output(level LogLevel, msg string) {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()

	l := defaultLogger
	if level < l.minLevel {
		return
	}
	w := l.writers[level]
	// depth 3: output <- Infof <- caller
	if w.color != nil {
		w.color.Output(3, msg)
	}
	if w.plain != nil {
		w.plain.Output(3, msg)
	}
}

func Debug(v ...interface{}) { output(DEBUG, fmt.Sprint(v...)) }

func Debugf(format string, v ...interface{}) { output(DEBUG, fmt.Sprintf(format, v...)) }

func Info(v ...interface{}) { output(INFO, fmt.Sprint(v...)) }

func Infof(format string, v ...interface{}) { output(INFO, fmt.Sprintf(format, v...)) }

func Warn(v ...interface{}) { output(WARN, fmt.Sprint(v...)) }

func Warnf(format string, v ...interface{}) { output(WARN, fmt.Sprintf(format, v...)) }

func Error(v ...interface{}) { output(ERROR, fmt.Sprint(v...)) }

func Errorf(format string, v ...interface{}) { output(ERROR, fmt.Sprintf(format, v...)) }

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	output(ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	output(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}
