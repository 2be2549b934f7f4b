// Package kv provides the key-value blob store that backs measurement
// history.
//
// It currently supports:
//   - A dependency-free file backend (JSON snapshot + append-only journal)
//   - A SQLite database file (optional build tag)
package kv
