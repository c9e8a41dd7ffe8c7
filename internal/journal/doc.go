// Package journal records every message the daemon publishes in a local
// SQLite database, so recent alerts and lock commands can be inspected after
// the fact through the status server.
package journal
