package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the help chatbot endpoint.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatCompletionChunk is the subset of an OpenAI-style streaming chunk the
// assembler reads. Unknown fields are ignored.
type ChatCompletionChunk struct {
	Choices []ChunkChoice `json:"choices"`
}

type ChunkChoice struct {
	Delta ChunkDelta `json:"delta"`
}

type ChunkDelta struct {
	Content string `json:"content,omitempty"`
}

// DeltaContent returns choices[0].delta.content, or "" when absent.
func (c ChatCompletionChunk) DeltaContent() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// NewDeltaChunk builds a single-choice chunk carrying text.
func NewDeltaChunk(text string) ChatCompletionChunk {
	return ChatCompletionChunk{Choices: []ChunkChoice{{Delta: ChunkDelta{Content: text}}}}
}
