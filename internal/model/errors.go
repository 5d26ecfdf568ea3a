package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Error taxonomy shared by every component. Wrap these with eris and test
// with errors.Is.
var (
	ErrSchemaValidation       = eris.New("schema validation failed")
	ErrInvalidScoreInput      = eris.New("invalid score input")
	ErrAmbiguousDuplicate     = eris.New("ambiguous duplicate")
	ErrIllegalTransition      = eris.New("illegal transition")
	ErrStaleWrite             = eris.New("stale write")
	ErrUnknownSourceReference = eris.New("unknown source reference")
	ErrNotFound               = eris.New("record not found")
	ErrBatchClosed            = eris.New("batch already finalised")
	ErrUnauthorized           = eris.New("unauthorized")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrSchemaValidation, "SchemaValidationError"},
	{ErrInvalidScoreInput, "InvalidScoreInput"},
	{ErrAmbiguousDuplicate, "AmbiguousDuplicate"},
	{ErrIllegalTransition, "IllegalTransition"},
	{ErrStaleWrite, "StaleWrite"},
	{ErrUnknownSourceReference, "UnknownSourceReference"},
	{ErrNotFound, "NotFound"},
	{ErrBatchClosed, "BatchClosed"},
	{ErrUnauthorized, "Unauthorized"},
}

// ErrorKind returns the taxonomy label of err, or "InternalError" when err
// does not wrap one of the sentinels above.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "InternalError"
}
