// Package preflight checks the local environment before tfrag touches the
// index: the data directory must be readable, the store directory writable
// with enough free space, and the descriptor limit high enough for watch
// mode.
package preflight
