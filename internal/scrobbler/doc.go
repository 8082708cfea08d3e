// Package scrobbler hosts the monitoring engine.
//
// The engine polls player sources on a fixed interval, feeds positions to the
// session tracker, and submits a scrobble when a session crosses the
// watch-completion threshold. Submissions that fail transiently are written
// to the durable backlog and replayed on a longer interval; permanent
// rejections are dropped with a notification. Stop is honored only at the
// sleep point between cycles so in-flight submissions and backlog writes
// always complete.
package scrobbler
