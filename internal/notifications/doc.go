// Package notifications delivers scrobbler events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. A separate Sink type carries the same messages to an optional
// in-process callback for attached user interfaces; callback failures are
// never allowed to disturb the monitor loop.
//
// Extend this package if you need alternative transports; the engine depends
// only on the simple Service interface.
package notifications
