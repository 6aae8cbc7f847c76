// Package dnswire decodes binary DNS messages into a structured form.
//
// The decoder is pure: it operates on an in-memory byte buffer, opens no
// sockets, and keeps no global state. Name compression is supported with a
// strict acyclicity rule - a compression pointer must point strictly before
// its own position - so decoding terminates on any input.
//
// RDATA is opaque at this layer; interpreting record payloads is the
// caller's concern.
package dnswire
