package logging

// scopedLogger prefixes every record with a component attribute and any
// additional fixed attributes. Cheap to derive via With.
type scopedLogger struct {
	base  Logger
	attrs []any
}

// Scoped returns a Logger that tags every record with component=<name>.
func Scoped(base Logger, component string) Logger {
	return With(base, "component", component)
}

// With returns a Logger that appends the given key/value pairs to every record.
func With(base Logger, kv ...any) Logger {
	base = OrNoOp(base)
	if len(kv) == 0 {
		return base
	}
	if s, ok := base.(*scopedLogger); ok {
		attrs := make([]any, 0, len(s.attrs)+len(kv))
		attrs = append(attrs, s.attrs...)
		attrs = append(attrs, kv...)
		return &scopedLogger{base: s.base, attrs: attrs}
	}
	return &scopedLogger{base: base, attrs: append([]any(nil), kv...)}
}

func (l *scopedLogger) merge(args []any) []any {
	out := make([]any, 0, len(l.attrs)+len(args))
	out = append(out, l.attrs...)
	return append(out, args...)
}

// Debug logs a debug message.
func (l *scopedLogger) Debug(msg string, args ...any) { l.base.Debug(msg, l.merge(args)...) }

// Info logs an informational message.
func (l *scopedLogger) Info(msg string, args ...any) { l.base.Info(msg, l.merge(args)...) }

// Warn logs a warning message.
func (l *scopedLogger) Warn(msg string, args ...any) { l.base.Warn(msg, l.merge(args)...) }

// Error logs an error message.
func (l *scopedLogger) Error(msg string, args ...any) { l.base.Error(msg, l.merge(args)...) }
