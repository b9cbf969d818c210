// Package intent turns raw chat messages into structured commands.
//
// Parsing is a pure function over the message text: it never consults
// bindings, device catalogs, or any other state. Validation of the
// named device and substitution of a chat's bound device happen in the
// dispatch layer.
package intent
