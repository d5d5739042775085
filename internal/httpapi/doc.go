// ABOUTME: Package documentation for the HTTP and WebSocket API layer
// ABOUTME: Describes routes, the response envelope, and error mapping

// Package httpapi exposes the chat service over HTTP and WebSocket.
//
// REST routes live under /api and require a bearer token:
//
//	POST /api/chats                        create or resolve a conversation
//	GET  /api/chats                        list the caller's conversations
//	GET  /api/chats/{chatID}               fetch one conversation with history
//	POST /api/chats/{chatID}/messages      send a message
//	GET  /api/chats/{chatID}/messages      list messages after a timestamp
//	POST /api/chats/{chatID}/participants  add a user to a group
//	POST /api/chats/{chatID}/leave         leave a group
//	GET  /api/chats/ws                     upgrade to a live event stream
//
// Every response carries a {"success": bool} envelope; failures add a
// user-displayable "message". Service errors map to HTTP statuses by kind:
// invalid input 400, missing access 403, unknown ids 404, duplicates 409.
//
// The WebSocket endpoint streams committed events to all of a user's
// sessions and accepts send_message and mark_read frames. Clients may tag
// send_message frames with a clientMsgId so resends after a reconnect are
// dropped instead of duplicated.
package httpapi
