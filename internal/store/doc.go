// Package store provides persistent storage for the chat engine using SQLite.
//
// # Data Models
//
//   - User: identity records owned by the surrounding application, read here
//     for display data and presence
//   - Conversation: a private (two-party) or group chat with a monotonically
//     non-decreasing last_activity_at
//   - Message: an immutable ledger entry; AuthorID is empty for
//     system-generated messages
//
// Membership is a separate edge table so participants can be added and
// removed independently of user or conversation existence.
//
// # Consistency
//
// Two invariants are enforced at this layer rather than above it:
//
//   - A partial UNIQUE index on conversations.pair_key guarantees at most one
//     private conversation per unordered user pair. CreateConversation
//     returns ErrDuplicateConversation when a concurrent request wins the
//     race, and callers re-resolve by pair key.
//   - AppendMessage runs in a single transaction that assigns the message
//     timestamp strictly after the conversation's current last_activity_at
//     and bumps it, so per-conversation ordering survives wall-clock skew
//     and concurrent sends.
//
// # SQLite Configuration
//
// The store uses SQLite (modernc.org/sqlite, no cgo) with WAL mode for
// concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created on open; timestamps are stored as RFC3339Nano
// strings in UTC.
package store
