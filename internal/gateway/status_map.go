package gateway

import (
	"settlement-api/internal/models"
)

// Outcome is the settlement decision a provider status code maps to.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	// OutcomeNone means the gateway reported an in-progress state and no
	// transition should be applied.
	OutcomeNone Outcome = "none"
)

// StatusMapper translates provider status codes into settlement outcomes.
// The table is provider-specific and loaded from configuration; codes the
// table does not know are treated as no-transition so an unexpected provider
// extension can never settle or revert money.
type StatusMapper struct {
	table map[string]Outcome
}

func NewStatusMapper(codes map[string]string) *StatusMapper {
	table := make(map[string]Outcome, len(codes))
	for code, outcome := range codes {
		switch Outcome(outcome) {
		case OutcomeApproved, OutcomeRejected, OutcomeNone:
			table[code] = Outcome(outcome)
		}
	}
	return &StatusMapper{table: table}
}

// Map returns the outcome for a provider status code.
func (m *StatusMapper) Map(code string) Outcome {
	if outcome, ok := m.table[code]; ok {
		return outcome
	}
	return OutcomeNone
}

// TargetStatus converts an outcome into the transaction status it settles
// to. The second return value is false for no-transition outcomes.
func (m *StatusMapper) TargetStatus(code string) (models.TransactionStatus, bool) {
	switch m.Map(code) {
	case OutcomeApproved:
		return models.StatusApproved, true
	case OutcomeRejected:
		return models.StatusRejected, true
	}
	return "", false
}
