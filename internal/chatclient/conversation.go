package chatclient

import (
	"fmt"
	"sync"

	"skillshare-backend/internal/models"
)

const Greeting = "Hi! I'm your SkillShare Connect assistant. I can help you learn how to use the app, create posts, find help, and more. What would you like to know?"

// Handle addresses one message inside a Conversation.
type Handle int

// Conversation is the ordered chat history shown to the user. It starts with
// the assistant greeting.
type Conversation struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
}

func NewConversation() *Conversation {
	return &Conversation{
		messages: []models.ChatMessage{{Role: models.RoleAssistant, Content: Greeting}},
	}
}

// Append adds a message and returns its handle.
func (c *Conversation) Append(msg models.ChatMessage) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return Handle(len(c.messages) - 1)
}

// SetContent replaces the content of the message at h.
func (c *Conversation) SetContent(h Handle, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(h) < 0 || int(h) >= len(c.messages) {
		return fmt.Errorf("chatclient: no message at %d", h)
	}
	c.messages[h].Content = content
	return nil
}

// Truncate drops every message from index n on.
func (c *Conversation) Truncate(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(c.messages) {
		c.messages = c.messages[:n]
	}
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []models.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Get returns the message at h.
func (c *Conversation) Get(h Handle) (models.ChatMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(h) < 0 || int(h) >= len(c.messages) {
		return models.ChatMessage{}, false
	}
	return c.messages[h], true
}
