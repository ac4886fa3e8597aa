// Package session owns one CQi connection and the command dispatcher on top
// of it.
//
// Ownership boundary:
// - Conn: one TCP socket, read/write deadlines, typed send/receive on the codec
// - Client: opcode + argument writing, classify -> decode, login/logout
// - typed command helpers (calls.go)
//
// The protocol is strictly request/response. A Conn serialises whole
// exchanges; it never pipelines and never reconnects. Open one Conn per
// concurrent user.
package session
