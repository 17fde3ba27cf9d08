package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, logger.ParseLevel(in), "level %q", in)
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	l.Warn("console logger works", logger.String("key", "value"))
}

// fieldLogger records the fields attached through With.
type fieldLogger struct {
	logger.Logger
	fields []logger.Field
}

func (l *fieldLogger) With(fields ...logger.Field) logger.Logger {
	return &fieldLogger{Logger: l.Logger, fields: append(append([]logger.Field(nil), l.fields...), fields...)}
}

func fieldKeys(l logger.Logger) map[string]string {
	out := map[string]string{}
	if fl, ok := l.(*fieldLogger); ok {
		for _, f := range fl.fields {
			out[f.Key] = f.String
		}
	}
	return out
}

func TestCtx_AttachesCorrelationFields(t *testing.T) {
	t.Parallel()

	base := &fieldLogger{Logger: logger.NewNop()}
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx = logger.WithJobID(ctx, "job-7")

	got := fieldKeys(logger.Ctx(ctx, base))
	assert.Equal(t, map[string]string{"request_id": "req-1", "job_id": "job-7"}, got)
}

func TestCtx_NoFieldsReturnsSameLogger(t *testing.T) {
	t.Parallel()

	base := &fieldLogger{Logger: logger.NewNop()}
	assert.Same(t, base, logger.Ctx(context.Background(), base))
	assert.Equal(t, context.Background(), logger.WithFields(context.Background()))
}

func TestWithFields_DoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	base := &fieldLogger{Logger: logger.NewNop()}
	parent := logger.WithRequestID(context.Background(), "req-1")
	a := logger.WithJobID(parent, "a")
	b := logger.WithJobID(parent, "b")

	assert.Equal(t, "a", fieldKeys(logger.Ctx(a, base))["job_id"])
	assert.Equal(t, "b", fieldKeys(logger.Ctx(b, base))["job_id"])
	assert.NotContains(t, fieldKeys(logger.Ctx(parent, base)), "job_id")
}

func TestNop(t *testing.T) {
	t.Parallel()

	l := logger.NewNop()
	assert.Same(t, l, l.With(logger.JobID("x")))
	assert.NoError(t, l.Sync())
}
