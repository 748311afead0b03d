package models

import dErrors "trustledger/pkg/domain-errors"

// ActionCategory classifies what a receipt attests to. The set is closed:
// unknown categories are a validation error at the trust boundary, never a
// silent fall-through.
type ActionCategory string

const (
	CategoryEconomicTransaction     ActionCategory = "economic.transaction"
	CategoryEconomicDispute         ActionCategory = "economic.dispute"
	CategoryEconomicRefund          ActionCategory = "economic.refund"
	CategoryProductivityTask        ActionCategory = "productivity.task"
	CategoryProductivityApplication ActionCategory = "productivity.application"
	CategoryProductivityCompletion  ActionCategory = "productivity.completion"
	CategoryIdentityProfile         ActionCategory = "identity.profile"
	CategoryIdentityVerification    ActionCategory = "identity.verification"
	CategorySocialPost              ActionCategory = "social.post"
	CategorySocialComment           ActionCategory = "social.comment"
	CategorySocialEndorsement       ActionCategory = "social.endorsement"
	CategoryComplianceIncident      ActionCategory = "compliance.incident"
	CategoryComplianceViolation     ActionCategory = "compliance.violation"
)

// DefaultCategory applies when a receipt omits action_category.
const DefaultCategory = CategoryEconomicTransaction

// Dimension names the trust vector bucket a category feeds.
type Dimension string

const (
	DimensionEconomic     Dimension = "economic"
	DimensionProductivity Dimension = "productivity"
	DimensionCompliance   Dimension = "compliance"
	// DimensionRecency marks categories with no bucket of their own; their
	// decayed magnitude still feeds the recency accumulator.
	DimensionRecency Dimension = "recency"
)

// CategoryProfile is a category's scoring assignment.
type CategoryProfile struct {
	Dimension  Dimension
	BaseWeight float64
}

// categoryTable is the single source of truth for categories. Disputes and
// violations carry negative base weights.
var categoryTable = map[ActionCategory]CategoryProfile{
	CategoryEconomicTransaction:     {DimensionEconomic, 1.0},
	CategoryEconomicDispute:         {DimensionEconomic, -2.0},
	CategoryEconomicRefund:          {DimensionEconomic, -0.5},
	CategoryProductivityTask:        {DimensionProductivity, 0.8},
	CategoryProductivityApplication: {DimensionProductivity, 0.3},
	CategoryProductivityCompletion:  {DimensionProductivity, 1.0},
	CategoryIdentityProfile:         {DimensionRecency, 0.2},
	CategoryIdentityVerification:    {DimensionRecency, 0.5},
	CategorySocialPost:              {DimensionRecency, 0.1},
	CategorySocialComment:           {DimensionRecency, 0.1},
	CategorySocialEndorsement:       {DimensionRecency, 0.3},
	CategoryComplianceIncident:      {DimensionCompliance, -1.5},
	CategoryComplianceViolation:     {DimensionCompliance, -3.0},
}

// ParseCategory validates a category from external input. Empty input yields
// the default category.
func ParseCategory(s string) (ActionCategory, error) {
	if s == "" {
		return DefaultCategory, nil
	}
	c := ActionCategory(s)
	if _, ok := categoryTable[c]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown action category: %q", s)
	}
	return c, nil
}

// Profile returns the scoring assignment for a category. Panics on categories
// that skipped ParseCategory; membership is enforced at the trust boundary.
func (c ActionCategory) Profile() CategoryProfile {
	p, ok := categoryTable[c]
	if !ok {
		panic("unvalidated action category: " + string(c))
	}
	return p
}

// IsEconomic reports whether the category belongs to the economic dimension.
// Anti-gaming diversity ratios consider only economic receipts so that social
// and identity actions cannot mask low economic diversity.
func (c ActionCategory) IsEconomic() bool {
	return categoryTable[c].Dimension == DimensionEconomic
}

func (c ActionCategory) String() string {
	return string(c)
}
