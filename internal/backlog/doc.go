// Package backlog persists scrobble submissions that failed transiently and
// replays them.
//
// The store is the single source of truth for work not yet confirmed done:
// every enqueue and every attempt-count mutation hits SQLite synchronously,
// so an unclean shutdown never loses an entry. At most one live entry exists
// per item id; repeat failures update the existing row. Entries that exhaust
// the attempt budget move to a dead state for inspection instead of being
// dropped.
//
// ProcessAll makes exactly one pass: each pending entry gets at most one
// attempt per invocation, in insertion order, and individual failures never
// stop the pass.
package backlog
