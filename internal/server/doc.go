// Package server implements the SmartFilter TCP service.
//
// Clients connect, send a single request and receive a single status byte:
//
//	client -> server: inputPath,outputPath,variantId
//	server -> client: 0x01 (success) or 0x00 (failure)
//
// The connection is closed after the reply. There is no framing and no
// keep-alive; the request must arrive in the first read.
//
// # Sessions
//
// Each accepted connection runs in its own goroutine and moves through the
// states Reading, Parsing, Executing, Replying and Closed. A connection that
// closes or fails before sending anything gets no reply. Every connection
// that reaches Parsing gets exactly one byte back.
//
// Executing loads the input image, applies the requested variant and saves
// the output. This work runs through an optional bounded pool
// (Config.MaxWorkers); a panic during it is recovered and reported as a
// failure to that client only.
//
// # Lifecycle
//
// Serve returns once its context is cancelled and all in-flight sessions have
// finished. A failed accept never stops the server; it is logged and retried
// with backoff.
//
// # Metrics
//
// Metrics exposes connection, request, duration and error counters on a
// private Prometheus registry. Serving them over HTTP is up to the caller.
package server
