package schemas

import "context"

// -- Conversation Schemas --

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation sent to the completion service.
// A human message with a non-empty Image is an image-human message.
type Message struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Image     []byte `json:"-"`
	ImageMIME string `json:"image_mime,omitempty"`
	// Observation marks a human message that reports the environment state.
	// Only observation messages are compacted once they have been consumed.
	Observation bool `json:"observation,omitempty"`
}

// IsImage reports whether the message carries a screenshot.
func (m Message) IsImage() bool { return len(m.Image) > 0 }

// SystemMessage builds a system message.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Text: text} }

// HumanMessage builds a plain human message.
func HumanMessage(text string) Message { return Message{Role: RoleHuman, Text: text} }

// AssistantMessage builds an assistant message.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Text: text} }

// ObservationMessage builds a human message reporting environment state,
// optionally carrying a JPEG screenshot.
func ObservationMessage(text string, image []byte) Message {
	m := Message{Role: RoleHuman, Text: text, Observation: true}
	if len(image) > 0 {
		m.Image = image
		m.ImageMIME = "image/jpeg"
	}
	return m
}

// -- Completion Schemas & Interface --

// OutputShape describes the structured form a final answer must take.
// Schema is a JSON Schema object (type, properties, required).
type OutputShape struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Schema      map[string]any `json:"schema" yaml:"schema"`
}

// RequiredFields lists the property names the shape marks as required.
func (s *OutputShape) RequiredFields() []string {
	if s == nil || s.Schema == nil {
		return nil
	}
	raw, ok := s.Schema["required"].([]any)
	if !ok {
		if strs, ok := s.Schema["required"].([]string); ok {
			return strs
		}
		return nil
	}
	fields := make([]string, 0, len(raw))
	for _, r := range raw {
		if name, ok := r.(string); ok {
			fields = append(fields, name)
		}
	}
	return fields
}

// GenerationOptions tunes a single completion call. Zero values fall back to
// the client's configured defaults.
type GenerationOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// CompletionRequest is a full conversation submitted to the completion service.
type CompletionRequest struct {
	Messages []Message        `json:"messages"`
	Shape    *OutputShape      `json:"shape,omitempty"`
	Options  GenerationOptions `json:"options"`
}

// TokenUsage reports token accounting for one or more completion calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// CompletionResponse is the reply to a CompletionRequest. Structured is set
// only when the request carried an OutputShape.
type CompletionResponse struct {
	Text       string         `json:"text"`
	Structured map[string]any `json:"structured,omitempty"`
	Usage      TokenUsage     `json:"usage"`
}

// CompletionClient abstracts the completion service.
type CompletionClient interface {
	// Complete sends the conversation and returns the model's reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Close releases any resources held by the client.
	Close() error
}
