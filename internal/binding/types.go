package binding

// Binding ties one chat session to a device it controls and receives
// status updates for.
type Binding struct {
	ChatID   string `json:"chat_id"`
	Platform string `json:"platform"`
}

// document is the on-disk shape: device ID to the chats bound to it.
type document map[string][]Binding
