// Package feed implements the record feed core: a cadenced record source,
// a backpressure-aware sink over the client transport, a one-shot
// cancellation signal bound to client disconnect, and the per-connection
// session loop that wires them together. A manager tracks live sessions
// for the monitoring endpoints.
package feed
