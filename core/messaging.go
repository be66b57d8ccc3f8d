package core

import "fmt"

// Message is an outbound chat notification addressed to a single recipient.
type Message struct {
	ChatID int64
	Text   string
}

func NewMessage(chatID int64, format string, args ...interface{}) *Message {
	if len(args) > 0 {
		return &Message{ChatID: chatID, Text: fmt.Sprintf(format, args...)}
	}
	return &Message{ChatID: chatID, Text: format}
}

// Messenger is any service that can deliver outbound messages.
// Delivery is fire-and-forget; no confirmation feeds back into the caller.
type Messenger interface {
	// SendMessages sends messages concurrently
	SendMessages(messages ...*Message)
}
