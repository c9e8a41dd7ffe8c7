// Package state persists the boolean feature flags (autolock, child mode).
//
// FileStore keeps each flag in its own JSON file as {"enabled": bool}.
// Controllers depend only on the Store interface.
package state
