// Package logging provides structured logging for the object store.
//
// Loggers are backed by logrus and take alternating key-value pairs:
//
//	log := logging.New(logging.Config{Level: "debug", Format: "json", Output: "stderr"})
//	log.Info("object created", "ref", r.String(), "type", "user")
//
// WithTx and WithFields return child loggers whose fields are attached to
// every entry. The parent is unaffected.
//
//	txLog := log.WithTx(logging.NewTxID())
//	txLog.Warn("namespace conflict", "value", "alice")
//
// NewNop returns a logger that discards everything, for tests.
package logging
