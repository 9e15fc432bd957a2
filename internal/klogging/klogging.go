package klogging

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sugartom/nexus/internal/kerror"
)

// Level type
type Level uint32

const (
	FatalLevel Level = iota + 1
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	VerboseLevel
)

func (e Level) String() string {
	switch e {
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warn"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case VerboseLevel:
		return "verbose"
	default:
		return fmt.Sprintf("%d", int(e))
	}
}

// may throw if unable to parse
func ParseLogLevel(str string) Level {
	switch {
	case strings.EqualFold("fatal", str):
		return FatalLevel
	case strings.EqualFold("error", str) || strings.EqualFold("err", str):
		return ErrorLevel
	case strings.EqualFold("warning", str) || strings.EqualFold("warn", str):
		return WarnLevel
	case strings.EqualFold("information", str) || strings.EqualFold("info", str):
		return InfoLevel
	case strings.EqualFold("debug", str):
		return DebugLevel
	case strings.EqualFold("verbose", str) || strings.EqualFold("trace", str):
		return VerboseLevel
	default:
		panic(kerror.Create("UnknownLogLevel", "parse log level failed").With("str", str))
	}
}

func NeedLog(importance Level, threshold Level) bool {
	return int(importance) <= int(threshold)
}

type Logger interface {
	Log(entry *LogEntry, shouldLog bool)
	Level() Level
}

type loggerHolder struct {
	logger Logger
}

var currentLogger atomic.Value

func GetLogger() Logger {
	if val := currentLogger.Load(); val != nil {
		return val.(*loggerHolder).logger
	}
	logger := &BasicLogger{LogLevel: DebugLevel}
	currentLogger.Store(&loggerHolder{logger})
	return logger
}

func SetDefaultLogger(logger Logger) {
	currentLogger.Store(&loggerHolder{logger})
}

type Keypair struct {
	K string
	V interface{}
}

type LogEntry struct {
	Logger    Logger
	Level     Level
	ShouldLog bool
	LogType   string
	Msg       string
	Details   []Keypair
	Ctx       context.Context
	Timestamp time.Time
}

func NewEntry(ctx context.Context, level Level) *LogEntry {
	logger := GetLogger()
	return &LogEntry{
		Logger:    logger,
		Level:     level,
		ShouldLog: NeedLog(level, logger.Level()),
		Ctx:       ctx,
		Timestamp: time.Now(),
	}
}

func (entry *LogEntry) With(k string, v interface{}) *LogEntry {
	if entry.ShouldLog {
		entry.Details = append(entry.Details, Keypair{k, v})
	}
	return entry
}

func (entry *LogEntry) WithError(err error) *LogEntry {
	if !entry.ShouldLog {
		return entry
	}
	if ke, ok := err.(*kerror.Kerror); ok {
		for _, item := range ke.Details {
			entry.Details = append(entry.Details, Keypair{item.K, item.V})
		}
		entry.Details = append(entry.Details, Keypair{"errorType", ke.Type}, Keypair{"errorMsg", ke.Msg}, Keypair{"stack", ke.Stack})
	} else {
		entry.Details = append(entry.Details, Keypair{"error", err.Error()})
	}
	return entry
}

func (entry *LogEntry) WithPanic(r interface{}) *LogEntry {
	if err, ok := r.(error); ok {
		entry.WithError(err)
	} else {
		entry.With("panic", r)
	}
	entry.With("stack", kerror.GetCallStack(1))
	return entry
}

func (entry *LogEntry) Log(logType, msg string) {
	entry.LogType = logType
	entry.Msg = msg
	entry.Logger.Log(entry, entry.ShouldLog)
	if entry.Level == FatalLevel {
		OsExit(1)
	}
}

func (entry *LogEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "level=%v, event=%s, msg=%s", entry.Level.String(), entry.LogType, entry.Msg)
	for _, item := range entry.Details {
		fmt.Fprintf(&b, ", %s=%v", item.K, item.V)
	}
	return b.String()
}

func Fatal(ctx context.Context) *LogEntry {
	return NewEntry(ctx, FatalLevel)
}
func Error(ctx context.Context) *LogEntry {
	return NewEntry(ctx, ErrorLevel)
}
func Warning(ctx context.Context) *LogEntry {
	return NewEntry(ctx, WarnLevel)
}
func Info(ctx context.Context) *LogEntry {
	return NewEntry(ctx, InfoLevel)
}
func Debug(ctx context.Context) *LogEntry {
	return NewEntry(ctx, DebugLevel)
}
func Verbose(ctx context.Context) *LogEntry {
	return NewEntry(ctx, VerboseLevel)
}

/********************************* BasicLogger ************************************/

// BasicLogger prints entries to stdout, used before main wires up logrus.
type BasicLogger struct {
	LogLevel Level
}

func (bl *BasicLogger) Log(entry *LogEntry, shouldLog bool) {
	if shouldLog {
		fmt.Println(entry.String())
	}
}

func (bl *BasicLogger) Level() Level {
	return bl.LogLevel
}

// NullLogger discards all log entries.
type NullLogger struct{}

func (nl *NullLogger) Log(entry *LogEntry, shouldLog bool) {}

func (nl *NullLogger) Level() Level {
	return FatalLevel
}
