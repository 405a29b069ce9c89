package logger

import (
	"context"
	"errors"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// MarshalLogObject lets zap encode the error block without reflection.
func (e ErrorObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.Msg)
	enc.AddString("stack", e.Stack)
	return nil
}

// Logger writes single-line JSON entries with a fixed set of top-level keys:
// timestamp, level, service, action, message, hostname, request_id, booking_id, details, error.
type Logger struct {
	service  string
	hostname string
	zl       *zap.Logger
}

// New creates a structured logger for the given service writing to stdout.
func New(service string) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(EncoderConfig()),
		zapcore.Lock(os.Stdout),
		zap.DebugLevel,
	)
	return NewWithCore(service, core)
}

// NewWithCore builds a Logger on top of an arbitrary zap core (tests use an observer core).
func NewWithCore(service string, core zapcore.Core) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	return &Logger{service: service, hostname: hn, zl: zap.New(core)}
}

// EncoderConfig is the JSON layout shared by every service.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.UTC().Format(time.RFC3339)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	err := l.zl.Sync()
	// stdout on most platforms rejects fsync; that is not a logging failure
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return nil
	}
	return err
}

func (l *Logger) fields(ctx context.Context, action string, details any) []zap.Field {
	fs := make([]zap.Field, 0, 7)
	fs = append(fs,
		zap.String("service", l.service),
		zap.String("action", safeAction(action)),
		zap.String("hostname", l.hostname),
	)
	if id := requestID(ctx); id != "" {
		fs = append(fs, zap.String("request_id", id))
	}
	if id := bookingID(ctx); id != "" {
		fs = append(fs, zap.String("booking_id", id))
	}
	if details != nil {
		fs = append(fs, zap.Any("details", details))
	}
	return fs
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.zl.Debug(strings.TrimSpace(msg), l.fields(ctx, action, details)...)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.zl.Info(strings.TrimSpace(msg), l.fields(ctx, action, details)...)
}

// Warn writes a WARN line; used for expected-but-notable outcomes such as throttled requests.
func (l *Logger) Warn(ctx context.Context, action, msg string, details any) {
	l.zl.Warn(strings.TrimSpace(msg), l.fields(ctx, action, details)...)
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = errors.New("unknown error")
	}

	fs := l.fields(ctx, action, details)
	fs = append(fs, zap.Object("error", ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}))
	l.zl.Error(strings.TrimSpace(msg), fs...)
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "ridebooking_request_id"
	ctxKeyBookingID ctxKey = "ridebooking_booking_id"
)

// WithRequestID returns a new context carrying request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithBookingID returns a new context carrying booking_id.
func (l *Logger) WithBookingID(ctx context.Context, bookingID string) context.Context {
	if strings.TrimSpace(bookingID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyBookingID, bookingID)
}

// RequestID extracts request_id from ctx (if any).
func RequestID(ctx context.Context) string {
	return requestID(ctx)
}

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

func bookingID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyBookingID).(string); ok {
		return s
	}
	return ""
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
