package motif

// Motif is a predefined appointment reason, bound to exactly one agent.
type Motif struct {
	ID      int64  `json:"id"`
	Libelle string `json:"libelle"`
	AgentID int64  `json:"agent_id"`
}
