// Package model contains the data types shared by the grading proxy and the
// conversation controller.
package model

// Message roles accepted on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a grading conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ValidRole reports whether role may appear in a grading conversation.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// GradeResponse is the body of every /api/grade response.
// Error is set only on failure; Result then carries the user-facing error text.
type GradeResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}
