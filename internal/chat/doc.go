// Package chat is the message coordination core: conversation identity
// resolution, membership management, message persistence ordering, read
// receipts, and the event contract for live fan-out.
//
// # Components
//
//   - Resolver: finds or creates the conversation for a participant set.
//     Private (two-party) conversations are unique per unordered pair; the
//     store's pair key closes the concurrent-creation race, so duplicate
//     creators converge on a single conversation.
//   - Membership: adds and removes participants of group conversations,
//     announcing each change with a system message.
//   - Ledger: appends messages with store-sequenced timestamps (recency never
//     regresses, even under wall-clock skew) and batch-transitions read
//     state.
//   - Service: composes the above into the operation surface a transport
//     binds to, and publishes an Event after each committed mutation.
//
// # Conventions
//
// The authenticated user id is an explicit parameter of every operation.
// Failures are *Error values with a Kind (see KindOf) and a user-displayable
// message; storage sentinels never leak past this package. Validation and
// authorization run before any mutation, so a rejected call leaves no
// partial state. Event publishing is fire-and-forget and strictly
// post-commit: a slow or absent subscriber cannot roll back or delay a
// mutation.
//
// System messages are a tagged variant (Message.System with nil Author), not
// a sentinel author id.
package chat
