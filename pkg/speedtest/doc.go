// Package speedtest implements a client-side network speed diagnostic.
//
// A session probes a set of HTTP endpoints in four sequential phases
// (environment lookup, latency, download, upload), reduces the raw timings
// into a Result, persists it to local history, and can interpret the result
// against a usage profile (streaming, gaming, remote work).
//
// The package is headless: a UI layer drives it through Client
// (Start/Cancel/ChooseProfile) and observes a typed event stream.
package speedtest
