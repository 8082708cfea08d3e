// Package sessions tracks per-item watch progress and decides when a watch
// counts as completed.
//
// The Tracker keeps one WatchSession per media item. Observations carry the
// player position and, when known, the total duration; accumulated watched
// time only ever grows, so seeking backward never "un-watches" anything. The
// threshold crossing fires exactly once per session, the first time the
// watched share reaches the configured percentage with a known duration.
package sessions
