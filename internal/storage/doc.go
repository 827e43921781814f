// Package storage persists the slot registry snapshot and the dispatch audit trail.
//
// Drivers:
//   - memory: process-local, nothing survives a restart
//   - file: JSON snapshot (temp file + rename) and a JSON Lines audit journal
//   - sqlite: one database file (modernc.org/sqlite, no cgo)
//   - redis: a hash for slots and a sorted set for audit entries
package storage
