package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel parses a string into a Level. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the log output format.
type Format int

const (
	// FormatText is human-readable key=value output.
	FormatText Format = iota
	// FormatJSON emits one JSON object per line.
	FormatJSON
)

// ParseFormat parses a string into a Format. Unknown names yield FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is the structured logging interface used throughout the store.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	// WithTx returns a logger that tags every entry with a transaction id.
	WithTx(txID string) Logger
	// WithFields returns a logger carrying the given key-value pairs.
	WithFields(keysAndValues ...interface{}) Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path.
	Output string
}

type logger struct {
	entry *logrus.Entry
}

// New creates a Logger from cfg. If the output file cannot be opened the
// logger falls back to stderr.
func New(cfg Config) Logger {
	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			out = os.Stderr
		} else {
			out = f
		}
	}
	return NewWithWriter(cfg, out)
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(ParseLevel(cfg.Level).logrus())

	if ParseFormat(cfg.Format) == FormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{logrus.FieldKeyTime: "ts"},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}

	return &logger{entry: logrus.NewEntry(l)}
}

// NewDefault creates an info-level text logger on stdout.
func NewDefault() Logger {
	return New(Config{Level: "info", Format: "text", Output: "stdout"})
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(logrus.DebugLevel, msg, keysAndValues)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(logrus.InfoLevel, msg, keysAndValues)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(logrus.WarnLevel, msg, keysAndValues)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(logrus.ErrorLevel, msg, keysAndValues)
}

func (l *logger) log(level logrus.Level, msg string, kv []interface{}) {
	if !l.entry.Logger.IsLevelEnabled(level) {
		return
	}
	if len(kv) == 0 {
		l.entry.Log(level, msg)
		return
	}
	l.entry.WithFields(toFields(kv)).Log(level, msg)
}

func (l *logger) WithTx(txID string) Logger {
	return &logger{entry: l.entry.WithField("tx", txID)}
}

func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	return &logger{entry: l.entry.WithFields(toFields(keysAndValues))}
}

// toFields pairs up keys and values. A trailing key without a value is
// dropped.
func toFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, ok := kv[i+1].(error); ok {
			fields[key] = err.Error()
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

// NewTxID returns a fresh transaction identifier.
func NewTxID() string {
	return uuid.NewString()
}

type nopLogger struct{}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{}) {}
func (n nopLogger) WithTx(string) Logger { return n }
func (n nopLogger) WithFields(...interface{}) Logger { return n }
