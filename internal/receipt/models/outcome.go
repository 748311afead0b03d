package models

import dErrors "trustledger/pkg/domain-errors"

// Outcome is the closed result vocabulary for a receipt.
//
// Two producer vocabularies exist in the wild: accepted/rejected/disputed and
// completed/failed/disputed/cancelled. The canonical enum is the former; the
// latter is accepted at parse time through an explicit alias map rather than
// silently merged. The mapping is a data-contract decision:
//
//	completed -> accepted
//	failed    -> rejected
//	cancelled -> rejected
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	OutcomeDisputed Outcome = "disputed"
)

var validOutcomes = map[Outcome]bool{
	OutcomeAccepted: true,
	OutcomeRejected: true,
	OutcomeDisputed: true,
}

// outcomeAliases maps the alternate producer vocabulary onto the canonical one.
var outcomeAliases = map[string]Outcome{
	"completed": OutcomeAccepted,
	"failed":    OutcomeRejected,
	"cancelled": OutcomeRejected,
}

// ParseOutcome validates an outcome from external input, applying the alias
// map for producers on the alternate vocabulary.
func ParseOutcome(s string) (Outcome, error) {
	if o := Outcome(s); validOutcomes[o] {
		return o, nil
	}
	if o, ok := outcomeAliases[s]; ok {
		return o, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown outcome: %q", s)
}

func (o Outcome) String() string {
	return string(o)
}
