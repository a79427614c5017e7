// Package storage persists items, users and notifications in SQLite.
//
// The engine only reads items (and clears fired reminders); items and
// users are owned by the surrounding application. Notifications are
// created here exactly once per (item, kind) for the deduplicated
// kinds, enforced both by an exists() lookup and by a partial unique
// index at the schema level.
package storage
