// Package players samples playback state from local media players.
//
// Each Source implementation knows how to ask one player what is currently
// playing. The engine polls sources on its own schedule; a player that is
// not running yields no samples rather than an error, since that is the
// normal idle state of a desktop machine.
package players

import "context"

// Sample is one observation of player state.
type Sample struct {
	// ItemID identifies the media item, stable for the life of a playback
	// session (source name plus media path).
	ItemID string
	// Title is the cleaned display title.
	Title string
	// Position is the playback position in seconds.
	Position float64
	// Duration is the total duration in seconds, 0 while unknown.
	Duration float64
	// Paused reports whether playback is paused.
	Paused bool
}

// Source polls one local media player.
type Source interface {
	Name() string
	Poll(ctx context.Context) ([]Sample, error)
}
