// Package settings persists user-tunable runtime settings, currently the
// watch completion threshold.
//
// The store funnels every write through SetThreshold so there is a single
// writer path; reads take the same lock. The file is rewritten atomically
// (temp file plus rename) so an unclean shutdown never leaves a torn record.
// Watch picks up external rewrites, which is how a threshold change made via
// the CLI reaches a running daemon.
package settings
