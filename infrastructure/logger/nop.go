package logger

// nopLogger discards everything. Used by tests and as a last-resort fallback.
type nopLogger struct {
	_ byte
}

// NewNop returns a Logger that discards all entries.
func NewNop() Logger {
	return &nopLogger{}
}

func (*nopLogger) Debug(string, ...Field) {}
func (*nopLogger) Info(string, ...Field)  {}
func (*nopLogger) Warn(string, ...Field)  {}
func (*nopLogger) Error(string, ...Field) {}
func (*nopLogger) Fatal(string, ...Field) {}

func (l *nopLogger) With(...Field) Logger { return l }

func (*nopLogger) Sync() error { return nil }
