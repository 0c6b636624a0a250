package logger

import "time"

// LogDownload logs the outcome of a single media transfer
func LogDownload(l Logger, identity, postID string, ordinal int, outcome string, err error) {
	entry := OrDefault(l).WithFields(map[string]interface{}{
		"identity": identity,
		"post_id":  postID,
		"ordinal":  ordinal,
		"outcome":  outcome,
	})

	switch {
	case err != nil:
		entry.WithError(err).Warn("Media download failed")
	case outcome == "already_present":
		entry.Debug("Media already present")
	default:
		entry.Info("Media downloaded")
	}
}

// LogAccountStart logs the beginning of an account sync
func LogAccountStart(l Logger, accountID int64, locator string) {
	OrDefault(l).InfoWithFields("Account sync started", map[string]interface{}{
		"account_id": accountID,
		"locator":    locator,
	})
}

// LogMetrics logs the counters of a finished operation
func LogMetrics(l Logger, operation string, elapsed time.Duration, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"duration":  elapsed,
	}
	for k, v := range metrics {
		fields[k] = v
	}
	OrDefault(l).InfoWithFields("Operation metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
