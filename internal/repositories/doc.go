// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Repositories accept a [shared.DBTX], so they run unchanged on a connection or within a transaction.
//
// Key Implementations:
//   - [UserRepository] : User accounts with username and email lookups
//   - [FavoriteRepository] : Favorite series owned by a user
//   - [SessionRepository] : Server-held login sessions with expiry
//   - [Store] : Transactional operations spanning repositories (user cascade delete, favorites replacement)
//
// Sequence numbers provide stable ordering (e.g., user #42, favorite #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
