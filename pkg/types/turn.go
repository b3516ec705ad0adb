package types

// Role identifies who produced a conversation turn
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is a single message in a session history
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// CloneTurns returns an independent copy of a history slice
func CloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
