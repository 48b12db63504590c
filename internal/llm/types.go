package llm

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversation turn. Assistant turns may carry tool calls;
// tool turns answer exactly one call via ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolSpec describes a function the model may call. Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// LLMRequest carries either a single Prompt or a Messages conversation.
type LLMRequest struct {
	System      string
	Prompt      string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float64
}

// Conversation returns Messages, or Prompt as a single user turn.
func (r LLMRequest) Conversation() []Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []Message{{Role: RoleUser, Content: r.Prompt}}
}

type LLMResponse struct {
	Content    string
	StopReason string
	ToolCalls  []ToolCall
}
