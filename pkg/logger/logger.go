package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

// Output formats accepted by Options.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Field names shared by every binary, so dashboards can join api and cron-worker lines.
const (
	FieldService          = "service"
	FieldEnv              = "env"
	FieldRequestID        = "request_id"
	FieldUserID           = "user_id"
	FieldActorRole        = "actor_role"
	FieldInventoryID      = "inventory_id"
	FieldRestockRequestID = "restock_request_id"
	FieldErrorCode        = "error_code"
	FieldStack            = "stack"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Env         string
	Level       zerolog.Level
	Format      string
	WarnStack   bool
	Output      io.Writer
}

// Logger writes zerolog events enriched with the fields carried on a context.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	builder := zerolog.New(out).Level(level).With().Timestamp().Str(FieldService, opts.ServiceName)
	if opts.Env != "" {
		builder = builder.Str(FieldEnv, opts.Env)
	}
	return &Logger{root: builder.Logger(), warnStack: opts.WarnStack}
}

// ParseLevel reads a level name case-insensitively, falling back to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return scoped
		}
	}
	return &l.root
}

func (l *Logger) extend(ctx context.Context, add func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	scoped := add(l.from(ctx).With()).Logger()
	return context.WithValue(ctx, ctxKey{}, &scoped)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

// WithFields attaches fields in key order so repeated lines read the same.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context {
		for _, key := range keys {
			c = c.Interface(key, fields[key])
		}
		return c
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.withString(ctx, FieldRequestID, requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.withString(ctx, FieldUserID, userID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.withString(ctx, FieldActorRole, role)
}

func (l *Logger) WithInventoryID(ctx context.Context, inventoryID string) context.Context {
	return l.withString(ctx, FieldInventoryID, inventoryID)
}

func (l *Logger) WithRestockRequestID(ctx context.Context, restockRequestID string) context.Context {
	return l.withString(ctx, FieldRestockRequestID, restockRequestID)
}

// withString skips empty identifiers so a missing id never shows up as "".
func (l *Logger) withString(ctx context.Context, key, value string) context.Context {
	if value == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str(key, value)
	})
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.from(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.from(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.from(ctx).Warn()
	if l.warnStack {
		event = event.Str(FieldStack, stackTrace())
	}
	event.Msg(msg)
}

// Error logs err with its error code when it is typed. Caller faults (4xx codes) carry no
// stack; server faults and untyped errors do.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.from(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	if typed := pkgerrors.As(err); typed != nil {
		event = event.Str(FieldErrorCode, string(typed.Code()))
		if pkgerrors.MetadataFor(typed.Code()).HTTPStatus < http.StatusInternalServerError {
			event.Msg(msg)
			return
		}
	}
	event.Str(FieldStack, stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
