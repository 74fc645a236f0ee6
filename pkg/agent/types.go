package agent

// Conversation roles as vendors understand them.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Usage accumulates token consumption across vendor calls.
type Usage struct {
	Requests     int `json:"requests"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add folds another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.Requests += other.Requests
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// StopReason is the vendor-neutral reason a model turn ended.
type StopReason string

const (
	// StopEndTurn means the model finished its answer.
	StopEndTurn StopReason = "stop"
	// StopToolUse means the model requested tool calls.
	StopToolUse StopReason = "tool_calls"
	// StopLength means generation hit the token limit; the conversation is
	// too large to continue.
	StopLength StopReason = "length"
	// StopContentFilter means the vendor blocked the response.
	StopContentFilter StopReason = "content_filter"
	// StopUnknown covers reasons this package does not recognize.
	StopUnknown StopReason = "unknown"
)
