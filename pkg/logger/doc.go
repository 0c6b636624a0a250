// Package logger provides the structured logging interface used across feedmirror.
//
// It wraps zerolog with a small interface so components can be handed a logger at
// construction time and tests can substitute NewNopLogger or NewTestLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("identity", "some_author")
//	log.InfoWithFields("Post synchronized", map[string]interface{}{
//	    "post_id":    "912345",
//	    "downloaded": 3,
//	})
//
// Console output is colorized; when a log file is configured every event is also
// written to it as JSON.
package logger
