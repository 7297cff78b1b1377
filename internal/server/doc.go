// Package server provides the HTTP surface of the record feed service:
// the /stream endpoint, monitoring endpoints and the middleware pipeline
// (correlation, recovery, CORS, body limits, metrics).
package server
