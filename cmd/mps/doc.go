// Command mps is the control CLI for the mpsd scrobbler daemon. It talks to
// the daemon over a Unix socket and falls back to reading the backlog
// database and settings file directly when the daemon is offline.
package main
