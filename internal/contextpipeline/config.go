package contextpipeline

// Config holds every threshold the pipeline uses. All fields are explicit —
// there is no implicit default applied at the pipeline boundary (spec.md
// §4.3); callers that want teacher-style defaults should set them at
// config-load time (see internal/config).
type Config struct {
	ContextLimit             int
	ReserveTokens             int
	ToolResultMaxContextShare float64
	ToolResultHardMax         int
	ToolResultMinKeep         int
	SoftTrimThreshold         float64
	HardClearThreshold        float64
	SoftTrimMinChars          int
	SoftTrimKeepChars         int
	ProtectedRecentMessages   int
	MaxHistoryTurns           int
	ProviderID                string
}

// Budget returns max(1000, ContextLimit - ReserveTokens).
func (c Config) Budget() int {
	budget := c.ContextLimit - c.ReserveTokens
	if budget < 1000 {
		return 1000
	}
	return budget
}

// withReserveTokens returns a copy of c with ReserveTokens replaced —
// used by the overflow recovery ladder's attempt 1.
func (c Config) withReserveTokens(reserve int) Config {
	c.ReserveTokens = reserve
	return c
}
