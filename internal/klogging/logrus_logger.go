package klogging

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sugartom/nexus/internal/kerror"
)

const (
	// ms resolution, with timezone, sorting friendly.
	TimestampFormat = "2006-01-02T15:04:05.999Z07:00"
)

// LogrusLogger implements the Logger interface on top of logrus.
type LogrusLogger struct {
	RusLogger *logrus.Logger
	logLevel  Level
}

func NewLogrusLogger(ctx context.Context) *LogrusLogger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		TimestampFormat: TimestampFormat,
		FullTimestamp:   true,
	})
	// the level threshold is evaluated in the LogrusLogger layer, logrus accepts everything
	log.SetLevel(logrus.TraceLevel)
	return &LogrusLogger{
		RusLogger: log,
		logLevel:  InfoLevel,
	}
}

// SetConfig accepts level = fatal/error/warning/info/debug/verbose and
// format = text/json. Invalid values keep the previous config.
func (logger *LogrusLogger) SetConfig(ctx context.Context, newLevelStr string, newFormatStr string) *LogrusLogger {
	defer func() {
		if r := recover(); r != nil {
			Warning(ctx).WithPanic(r).Log("UpdateLogConfigFailed", "log config update failed")
		}
	}()
	newLevel := ParseLogLevel(newLevelStr)
	if strings.EqualFold("json", newFormatStr) {
		logger.RusLogger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: TimestampFormat,
		})
	} else {
		logger.RusLogger.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			TimestampFormat: TimestampFormat,
			FullTimestamp:   true,
		})
	}
	logger.logLevel = newLevel
	return logger
}

func (logger *LogrusLogger) Level() Level {
	return logger.logLevel
}

func (logger *LogrusLogger) Log(entry *LogEntry, shouldLog bool) {
	if !shouldLog {
		return
	}
	fields := logrus.Fields{"event": entry.LogType}
	for _, item := range entry.Details {
		fields[item.K] = item.V
	}
	rusEntry := logger.RusLogger.WithFields(fields).WithTime(entry.Timestamp)
	switch entry.Level {
	case FatalLevel:
		// OsExit happens in LogEntry.Log, keep logrus from exiting too
		rusEntry.Error(entry.Msg)
	case ErrorLevel:
		rusEntry.Error(entry.Msg)
	case WarnLevel:
		rusEntry.Warn(entry.Msg)
	case InfoLevel:
		rusEntry.Info(entry.Msg)
	case DebugLevel:
		rusEntry.Debug(entry.Msg)
	case VerboseLevel:
		rusEntry.Trace(entry.Msg)
	default:
		panic(kerror.Create("UnknownLogLevel", "unexpected log level").With("level", entry.Level))
	}
}
