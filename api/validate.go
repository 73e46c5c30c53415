package api

import "github.com/companionchat/companion-api/api/validator"

// Aliases so callers wire a validator without importing the subpackage.
type (
	Validator       = validator.Validator
	ValidationError = validator.ValidationError
)
