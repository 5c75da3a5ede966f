package casedata

import (
	"encoding/json"
	"time"
)

// Status is the internal workflow status of a case.
type Status string

const (
	// WaitingSubmission: the case row exists but the outbound submission
	// to Signifyd has not been acknowledged yet.
	WaitingSubmission Status = "waiting_submission"
	// InReview: Signifyd acknowledged the case, verdicts may arrive.
	InReview Status = "in_review"
	// ProcessingResponse: a verdict is being applied to the order.
	ProcessingResponse Status = "processing_response"
	// Completed: a consistent action has been applied, no path back.
	Completed Status = "completed"
	// AsyncWait: orders on async payment methods park here until their
	// payment confirmation arrives.
	AsyncWait Status = "async_wait"
)

// Guarantee is the risk service's verdict on an investigation.
type Guarantee string

const (
	GuaranteeApproved Guarantee = "APPROVED"
	GuaranteeDeclined Guarantee = "DECLINED"
	GuaranteePending  Guarantee = "PENDING"
	GuaranteeNA       Guarantee = "N/A"
)

// Entries holds the auxiliary flags attached to a case. The legacy
// connector kept these in an untyped serialized bag; known flags get
// explicit fields here.
type Entries struct {
	// HoldReleased is set when a merchant manually released the hold.
	// Automated verdicts must not re-hold or cancel after that.
	HoldReleased bool `json:"hold_released,omitempty"`
	// TestInvestigation marks cases created from the Signifyd test console.
	TestInvestigation bool `json:"testInvestigation,omitempty"`
}

// DecodeEntries restores Entries from their stored form. Malformed
// payloads decode to empty entries, never to an error.
func DecodeEntries(raw []byte) Entries {
	var e Entries
	if len(raw) == 0 {
		return e
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entries{}
	}
	return e
}

// Encode serializes the entries for storage.
func (e Entries) Encode() []byte {
	raw, err := json.Marshal(e)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// Case is one fraud investigation tracked against an order. It is keyed
// by the externally assigned case code once Signifyd issues one.
type Case struct {
	Created        time.Time
	Updated        time.Time
	Code           string
	OrderIncrement string
	SignifydStatus string
	StoreCode      string
	Guarantee      Guarantee
	MagentoStatus  Status
	Entries        Entries
	OrderID        int64
	Score          int
	Retries        int
}

// New creates a case record for a freshly placed order.
func New(orderID int64, orderIncrement, storeCode string) *Case {
	now := time.Now()
	return &Case{
		OrderID:        orderID,
		OrderIncrement: orderIncrement,
		StoreCode:      storeCode,
		SignifydStatus: "PENDING",
		Guarantee:      GuaranteeNA,
		MagentoStatus:  WaitingSubmission,
		Created:        now,
		Updated:        now,
	}
}

// SetCode assigns the external case code. The code is immutable once set.
func (c *Case) SetCode(code string) {
	if c.Code == "" && code != "" {
		c.Code = code
	}
}

// SetUpdated stamps the record and resets the retry counter. Every
// successful update starts the resync schedule over.
func (c *Case) SetUpdated() {
	c.Retries = 0
	c.Updated = time.Now()
}

// Complete marks the case settled for this cycle.
func (c *Case) Complete() {
	c.MagentoStatus = Completed
	c.SetUpdated()
}
