package orderaction

import (
	"github.com/KretovDmitry/fraud-review-service/internal/models/casedata"
)

// Action is one of the canonical order operations a verdict may select.
// A closed set so that a misconfigured action name cannot silently fall
// through the executor.
type Action uint8

const (
	// None: no action was resolved for the current disposition. The case
	// is not completed.
	None Action = iota
	// Nothing: the configured workflow explicitly asks to do nothing.
	// Unlike None it settles the case.
	Nothing
	Hold
	Unhold
	Cancel
	Capture
	// Wait: the verdict is still pending on the Signifyd side.
	Wait
)

func (a Action) String() string {
	switch a {
	case Nothing:
		return "nothing"
	case Hold:
		return "hold"
	case Unhold:
		return "unhold"
	case Cancel:
		return "cancel"
	case Capture:
		return "capture"
	case Wait:
		return "wait"
	}
	return ""
}

func (a Action) mutating() bool {
	switch a {
	case Hold, Unhold, Cancel, Capture:
		return true
	}
	return false
}

// ParseAction maps a configured action name to its Action. Unknown names
// report false.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "":
		return None, true
	case "nothing":
		return Nothing, true
	case "hold":
		return Hold, true
	case "unhold":
		return Unhold, true
	case "cancel":
		return Cancel, true
	case "capture":
		return Capture, true
	}
	return None, false
}

// Resolution is the derived order action for a guarantee disposition.
// It is computed fresh on every verdict and never persisted.
type Resolution struct {
	Reason string
	Action Action
}

// Resolve maps the current guarantee disposition to an order action.
//
// Once a merchant has manually released a hold (holdReleased), automated
// verdicts must not re-hold or cancel the order: both configured actions
// are overridden to Nothing.
func Resolve(g casedata.Guarantee, holdReleased bool, positive, negative Action) Resolution {
	if holdReleased {
		positive, negative = Nothing, Nothing
	}

	switch g {
	case casedata.GuaranteeDeclined:
		return Resolution{Action: negative, Reason: "guarantee declined"}
	case casedata.GuaranteeApproved:
		return Resolution{Action: positive, Reason: "guarantee approved"}
	case casedata.GuaranteePending:
		return Resolution{Action: Wait, Reason: "case in manual review"}
	}

	return Resolution{}
}
