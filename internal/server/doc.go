// Package server implements the chat coordinator: the hub that serializes
// session events, the per-connection WebSocket clients, the broadcast
// router and the HTTP surface around them.
//
// The hub goroutine owns session state. Presence and history stores carry
// their own locks so the read-only HTTP endpoints can snapshot them from
// request goroutines.
package server
