package webhook

import (
	"math"

	"github.com/KretovDmitry/fraud-review-service/internal/models/casedata"
	"github.com/KretovDmitry/fraud-review-service/internal/models/order"
)

// Payload is a parsed verdict event. Every field except CaseID is
// optional: absent fields never mutate the corresponding case field.
type Payload struct {
	Score                *float64 `json:"score"`
	Status               *string  `json:"status"`
	GuaranteeDisposition *string  `json:"guaranteeDisposition"`
	TestInvestigation    *bool    `json:"testInvestigation"`
	CaseID               string   `json:"caseId"`
	OrderID              string   `json:"orderId"`
}

// MergeResult reports which groups of fields the merge actually changed.
type MergeResult struct {
	Changed bool
	// GuaranteeChanged is the only trigger for the disposition resolver:
	// the intent is to act once per disposition change, not once per
	// webhook delivery.
	GuaranteeChanged bool
}

// Merge folds the verdict payload into the case record and mirrors the
// relevant fields onto the order. A field is written only when the
// payload value differs from the stored one.
func Merge(c *casedata.Case, ord *order.Order, p *Payload) MergeResult {
	var res MergeResult

	if p.Score != nil {
		if score := int(math.Floor(*p.Score)); c.Score != score {
			c.Score = score
			ord.SignifydScore = score
			res.Changed = true
		}
	}

	if p.Status != nil && c.SignifydStatus != *p.Status {
		c.SignifydStatus = *p.Status
		res.Changed = true
	}

	if p.GuaranteeDisposition != nil && c.Guarantee != casedata.Guarantee(*p.GuaranteeDisposition) {
		c.Guarantee = casedata.Guarantee(*p.GuaranteeDisposition)
		ord.SignifydGuarantee = *p.GuaranteeDisposition
		res.Changed = true
		res.GuaranteeChanged = true
	}

	if p.CaseID != "" && c.Code == "" {
		c.SetCode(p.CaseID)
		ord.SignifydCode = p.CaseID
		res.Changed = true
	}

	if p.TestInvestigation != nil && c.Entries.TestInvestigation != *p.TestInvestigation {
		c.Entries.TestInvestigation = *p.TestInvestigation
		res.Changed = true
	}

	return res
}
