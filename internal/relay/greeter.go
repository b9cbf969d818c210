package relay

import (
	"fmt"
	"sync"
)

// Greeter tracks which chats have already been greeted so the "Hi,
// {username}" prefix appears only on a chat's first status update in
// this process's lifetime.
//
// Thread Safety: all methods are safe for concurrent use.
type Greeter struct {
	mu      sync.Mutex
	greeted map[string]struct{}
}

// NewGreeter creates an empty greeter.
func NewGreeter() *Greeter {
	return &Greeter{greeted: make(map[string]struct{})}
}

// Prefix returns the greeting prefix for a chat and marks it greeted.
// The first call for a chat id returns "Hi, {username}\n"; every later
// call returns the empty string. Marking is monotonic: a chat never
// becomes ungreeted.
func (g *Greeter) Prefix(chatID, username string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.greeted[chatID]; ok {
		return ""
	}
	g.greeted[chatID] = struct{}{}
	return fmt.Sprintf("Hi, %s\n", username)
}

// Greeted reports whether a chat has been greeted.
func (g *Greeter) Greeted(chatID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.greeted[chatID]
	return ok
}
