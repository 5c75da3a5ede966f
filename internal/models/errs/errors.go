package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	// ErrMalformedPayload reports a request body that is not valid JSON.
	ErrMalformedPayload = errors.New("invalid JSON provided on request body")
	// ErrUnknownCase reports a webhook for a case that was never created here.
	ErrUnknownCase = errors.New("case not found on Magento")
	// ErrCaseNotReady reports a webhook for a case whose outbound submission
	// has not been acknowledged yet.
	ErrCaseNotReady = errors.New("case is not ready to be updated")
	// ErrDisabled reports that the integration is switched off for the scope.
	ErrDisabled = errors.New("integration is not currently enabled")
	// ErrAuthFailed reports a webhook signature that did not verify.
	ErrAuthFailed = errors.New("webhook authentication failed")
	// ErrNotFound is a generic persistence miss.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrPersistence reports a failed unit of work; the transaction was
	// rolled back and nothing was applied.
	ErrPersistence = errors.New("persistence failure")
)

// Type just for marshalling purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
}

// Let users know which required request parameter is not provided.
type RequiredJSONBodyParamError struct {
	ParamName string
}

func (e *RequiredJSONBodyParamError) Error() string {
	return fmt.Sprintf("JSON body argument %q is required, but not found", e.ParamName)
}

// CaseNotFoundError provides the identifier the sender used.
type CaseNotFoundError struct {
	CaseID string
}

func (e *CaseNotFoundError) Error() string {
	return fmt.Sprintf("case %q on request not found on Magento", e.CaseID)
}

func (e *CaseNotFoundError) Unwrap() error {
	return ErrUnknownCase
}
