// Package log provides structured I/O trace logging for the adapter.
//
// This package defines the Logger interface and Event types for capturing
// what happens to assembly data: cyclic data received and produced,
// connection lifecycle, explicit attribute access, resets, failsafe
// transitions and run/idle changes. It is separate from operational logging
// (slog) - the trace is a complete machine-readable record for debugging and
// analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.TraceLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.TraceLogger, _ = log.NewFileLogger("/var/log/eip/device.eiplog")
//
//	// Both: use MultiLogger
//	cfg.TraceLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Trace files (.eiplog) start with a Header record carrying FileMagic, the
// format version, the creation time and the data capture length. Event
// records follow, each a CBOR map with integer keys and tagged RFC 3339
// timestamps. Reader rejects files without a valid header and reports a
// record cut short by a crash as ErrTruncated. The eip-log tool views,
// filters and summarizes trace files.
package log
