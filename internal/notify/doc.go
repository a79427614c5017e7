// Package notify is the notification engine: a per-tick trigger
// scanner over the item store (reminder, due-soon, overdue windows), a
// durable deduplicated notification writer, and a two-channel delivery
// fan-out (live push via the connection registry, best-effort email).
package notify
