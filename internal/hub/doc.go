// Package hub provides in-memory pub/sub delivering chat events to
// connected users' live sessions.
//
// Sessions register per user id via Subscribe and receive events over a
// buffered channel. Publish resolves an event's participant id set to live
// channels and sends without blocking: a full channel drops the event for
// that session only. Durability lives entirely in the message ledger;
// clients that miss events reconcile with a list-messages-after fetch on
// reconnect.
//
// The registry supports concurrent registration and deregistration from
// many connection handlers without pausing delivery. Online exposes the
// hub's connection view for presence consultation.
package hub
