package entities

import "time"

// ChatRole defines who produced a chat turn
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
	ChatRoleTool  ChatRole = "tool"
)

// FunctionCall is a structured call requested by the model
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries the result of a function call back to the model
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// ChatPart is one piece of a chat turn. Exactly one field is set.
type ChatPart struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// ChatMessage is a single turn in the session transcript
type ChatMessage struct {
	ID        int64      `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Role      ChatRole   `json:"role"`
	Parts     []ChatPart `json:"parts"`
	IsError   bool       `json:"is_error,omitempty"`
}

// NewTextMessage builds a single-part text turn
func NewTextMessage(role ChatRole, text string) ChatMessage {
	return ChatMessage{
		Role:  role,
		Parts: []ChatPart{{Text: text}},
	}
}

// Text concatenates the text parts of the message
func (m ChatMessage) Text() string {
	var text string
	for _, part := range m.Parts {
		text += part.Text
	}
	return text
}
