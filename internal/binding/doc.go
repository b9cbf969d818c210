// Package binding tracks which chat sessions control which devices.
//
// Bindings live in a JSON file keyed by device ID so they survive
// restarts and can be inspected or edited by hand. Registry serves
// reads from memory, persists writes atomically, and polls the file's
// modification time so outside edits take effect without a restart.
package binding
