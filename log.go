package rangestreams

import "go.uber.org/zap"

// logAdapter is the subset of *zap.SugaredLogger's interface the core
// depends on, so tests can swap in a lighter fake without pulling in zap's
// observer package.
type logAdapter interface {
	Debugw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// defaultLogger is shared by every RangeStream that is not constructed with
// WithLogger. It stays a no-op until SetLogger is called.
var defaultLogger logAdapter = zap.NewNop().Sugar()

// SetLogger installs the process-wide default logger used by RangeStreams
// that were not given one explicitly via WithLogger.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		defaultLogger = zap.NewNop().Sugar()
		return
	}
	defaultLogger = l
}
