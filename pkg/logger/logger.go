package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const moduleName = "FolioSim"

// Logger wraps zerolog and optionally mirrors error entries into a
// LogCollector for aggregated delivery.
type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

// Config controls level, encoding, and destination.
type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
	Format     string // json or console
	Output     string // stdout, stderr, or a file path
	TimeFormat string // timestamp layout, RFC3339Nano when empty
}

// New builds a Logger from cfg. The level applies globally.
func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	sink, err := openSink(cfg.Output)
	if err != nil {
		return nil, err
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		sink = zerolog.ConsoleWriter{Out: sink, TimeFormat: cfg.TimeFormat}
	}

	zl := zerolog.New(sink).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	return &Logger{zl: zl}, nil
}

func openSink(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return file, nil
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.emit(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) { l.emit(l.zl.Warn(), msg, fields) }

// Error logs at error level and feeds the entry to the collector when one
// is attached.
func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.apply(event)
	}
	event.Msg(msg)
}

// collect forwards one entry to the collector, tagging it with the call
// site two frames up (the caller of Error).
func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}

	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.Index(file, moduleName); i >= 0 {
			file = file[i+len(moduleName):]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	kv := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		k, v := f.kv()
		kv[k] = v
	}
	l.collector.AddLog(level, msg, kv, caller)
}

// AddCollector attaches a collector for error aggregation, replacing any
// existing one.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if l.collector == nil {
		return
	}
	l.collector.Close()
	l.collector = nil
}

type fieldKind uint8

const (
	stringKind fieldKind = iota
	intKind
	int64Kind
	boolKind
	errorKind
	anyKind
)

// Field is one structured attribute attached to a log entry.
type Field struct {
	key  string
	kind fieldKind
	str  string
	i64  int64
	b    bool
	err  error
	any  interface{}
}

func (f Field) apply(e *zerolog.Event) {
	switch f.kind {
	case stringKind:
		e.Str(f.key, f.str)
	case intKind:
		e.Int(f.key, int(f.i64))
	case int64Kind:
		e.Int64(f.key, f.i64)
	case boolKind:
		e.Bool(f.key, f.b)
	case errorKind:
		e.Err(f.err)
	case anyKind:
		e.Interface(f.key, f.any)
	}
}

// kv returns the field as a plain key/value pair for aggregation.
func (f Field) kv() (string, interface{}) {
	switch f.kind {
	case intKind:
		return f.key, int(f.i64)
	case int64Kind:
		return f.key, f.i64
	case boolKind:
		return f.key, f.b
	case errorKind:
		if f.err == nil {
			return f.key, nil
		}
		return f.key, f.err.Error()
	case anyKind:
		return f.key, f.any
	default:
		return f.key, f.str
	}
}

func String(key, value string) Field {
	return Field{key: key, kind: stringKind, str: value}
}

func Int(key string, value int) Field {
	return Field{key: key, kind: intKind, i64: int64(value)}
}

func Int32(key string, value int32) Field {
	return Field{key: key, kind: intKind, i64: int64(value)}
}

func Uint(key string, value uint) Field {
	return Field{key: key, kind: intKind, i64: int64(value)}
}

func Int64(key string, value int64) Field {
	return Field{key: key, kind: int64Kind, i64: value}
}

func Uint64(key string, value uint64) Field {
	return Field{key: key, kind: int64Kind, i64: int64(value)}
}

func Bool(key string, value bool) Field {
	return Field{key: key, kind: boolKind, b: value}
}

func Error(err error) Field {
	return Field{key: "error", kind: errorKind, err: err}
}

func Any(key string, value interface{}) Field {
	return Field{key: key, kind: anyKind, any: value}
}

// Duration records the value as integer milliseconds.
func Duration(key string, value time.Duration) Field {
	return Field{key: key, kind: int64Kind, i64: value.Milliseconds()}
}

// Strings joins the values into one comma separated field.
func Strings(key string, values []string) Field {
	return String(key, strings.Join(values, ", "))
}
