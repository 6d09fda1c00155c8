package llm

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FinishLength is the finish reason both OpenAI-style APIs report when the
// token limit cut the reply short.
const FinishLength = "length"

// Message is one entry of the request conversation.
type Message struct {
	Role    string
	Content string
}

// UserMessage wraps text as a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Usage holds token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
