// Package logging builds the slog loggers used by sstray.
//
// Console output goes through [Handler], which colors levels and keys when
// the writer is a terminal. When a log file is configured, records are also
// written as JSON to a size-rotated file via [RotatingWriter].
//
//	logger, closer, err := logging.New(logging.Config{
//		Level:  slog.LevelInfo,
//		Format: logging.FormatText,
//		File:   "/var/log/sstray.log",
//	})
//	defer closer.Close()
//
// For tests, use [ForTest] to route records to the test log.
package logging
