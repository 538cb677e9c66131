package controllers

import (
	"errors"
	"io"

	"github.com/atoz-auto/autoshop-api/apperrors"
)

// bindError turns a gin binding failure into a validation error carrying the
// binder's message.
func bindError(err error) error {
	if errors.Is(err, io.EOF) {
		return apperrors.Validation("Request body is required")
	}
	return apperrors.Validation("Invalid request data").WithDetails(err.Error())
}
