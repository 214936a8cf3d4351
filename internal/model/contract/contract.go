package contract

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	// Temperature nil leaves the provider default.
	Temperature *float32 `json:"temperature,omitempty"`
	// JSON asks the provider to constrain output to a JSON object when it can.
	JSON bool `json:"json,omitempty"`
}

type CompletionResponse struct {
	Content string `json:"content"`
}

// SplitSystem separates system messages (joined) from the conversation.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
