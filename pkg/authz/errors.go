package authz

import (
	"fmt"

	"github.com/planora/planora/pkg/serrors"
)

const errorCodeForbidden = "AUTHZ_FORBIDDEN"

var ErrForbidden = serrors.NewError(errorCodeForbidden, "permission denied")

// forbiddenError builds a standardized error for denied policies.
func forbiddenError(req Request) *serrors.BaseError {
	return ErrForbidden.WithDetails(map[string]string{
		"subject": req.Subject,
		"domain":  req.Domain,
		"object":  req.Object,
		"action":  req.Action,
	})
}

// configError standardizes configuration validation errors.
func configError(msg string, args ...any) error {
	return fmt.Errorf("authz: "+msg, args...)
}
