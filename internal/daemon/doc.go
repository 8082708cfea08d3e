// Package daemon wires the scrobbler engine, backlog store, and settings
// store into a single-instance background service. A file lock guards
// against concurrent daemons; every control-plane operation exposed over IPC
// is a thin method on Daemon.
package daemon
