package users

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidationFailed    = "VALIDATION_FAILED"
	TextCodeCredentialMalformed = "CREDENTIAL_MALFORMED"
	TextCodeKeyNotFound         = "KEY_NOT_FOUND"
	TextCodeKeyGenerationFailed = "KEY_GENERATION_FAILED"
	TextCodeEncodingMalformed   = "ENCODING_MALFORMED"
	TextCodeRecordNotFound      = "RECORD_NOT_FOUND"
	TextCodeCapabilityDenied    = "CAPABILITY_DENIED"
	TextCodeKeyUsageInvalid     = "KEY_USAGE_INVALID"
)

// ErrRecordNotFound is returned by stores when a filter matches nothing
var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMissingStore signals a directory or user built without a store
var ErrMissingStore = goerrors.New("users store is not configured", goerrors.CategoryInternal).
	WithTextCode("MISSING_STORE")

// ErrMissingFileStorage signals a directory or user built without file storage
var ErrMissingFileStorage = goerrors.New("users file storage is not configured", goerrors.CategoryInternal).
	WithTextCode("MISSING_FILE_STORAGE")

// ErrNotAdmin is returned when admin capabilities are requested for another variant
var ErrNotAdmin = goerrors.New("user does not hold the admin capability", goerrors.CategoryAuthz).
	WithTextCode(TextCodeCapabilityDenied).
	WithCode(goerrors.CodeForbidden)

// NewValidationError names the fields that failed validation.
func NewValidationError(message string, fields ...string) *goerrors.Error {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)

	if message == "" {
		message = "validation failed"
	}
	if len(sorted) > 0 {
		message = message + ": " + strings.Join(sorted, ", ")
	}

	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"fields": sorted})
}

// asValidationError converts ozzo validation.Errors into a ValidationError,
// nested struct errors are flattened to dotted field names.
func asValidationError(message string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return NewValidationError(message, flattenFields("", verrs)...)
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithTextCode(TextCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest)
}

func flattenFields(prefix string, verrs validation.Errors) []string {
	fields := make([]string, 0, len(verrs))
	for key, err := range verrs {
		if err == nil {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			fields = append(fields, flattenFields(key, nested)...)
			continue
		}
		fields = append(fields, key)
	}
	return fields
}

// NewCredentialError wraps malformed hash or token input.
func NewCredentialError(err error, message string) *goerrors.Error {
	if err == nil {
		return goerrors.New(message, goerrors.CategoryAuth).
			WithTextCode(TextCodeCredentialMalformed)
	}
	return goerrors.Wrap(err, goerrors.CategoryAuth, message).
		WithTextCode(TextCodeCredentialMalformed)
}

// NewKeyNotFoundError reports a missing key slot.
func NewKeyNotFoundError(kind KeyKind, index int, size int) *goerrors.Error {
	return goerrors.New("key not found", goerrors.CategoryNotFound).
		WithTextCode(TextCodeKeyNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			"kind":  string(kind),
			"index": index,
			"size":  size,
		})
}

// NewKeyGenerationError reports a failed generation, metadata lists the
// artifacts that were attempted.
func NewKeyGenerationError(err error, message string, metadata map[string]any) *goerrors.Error {
	var e *goerrors.Error
	if err == nil {
		e = goerrors.New(message, goerrors.CategoryInternal)
	} else {
		e = goerrors.Wrap(err, goerrors.CategoryInternal, message)
	}
	e = e.WithTextCode(TextCodeKeyGenerationFailed)
	if len(metadata) > 0 {
		e = e.WithMetadata(metadata)
	}
	return e
}

// NewKeyUsageError reports a key used for an operation its kind does not allow.
func NewKeyUsageError(kind KeyKind, operation string) *goerrors.Error {
	return goerrors.New("key does not allow "+operation, goerrors.CategoryBadInput).
		WithTextCode(TextCodeKeyUsageInvalid).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"kind":      string(kind),
			"operation": operation,
		})
}

// NewEncodingError reports malformed PEM or JWK input.
func NewEncodingError(err error, message string) *goerrors.Error {
	if err == nil {
		return goerrors.New(message, goerrors.CategoryBadInput).
			WithTextCode(TextCodeEncodingMalformed).
			WithCode(goerrors.CodeBadRequest)
	}
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).
		WithTextCode(TextCodeEncodingMalformed).
		WithCode(goerrors.CodeBadRequest)
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeValidationFailed)
}

// IsCredentialError reports whether err is a CredentialError
func IsCredentialError(err error) bool {
	return hasTextCode(err, TextCodeCredentialMalformed)
}

// IsKeyNotFound reports whether err is a KeyNotFoundError
func IsKeyNotFound(err error) bool {
	return hasTextCode(err, TextCodeKeyNotFound)
}

// IsKeyGenerationError reports whether err is a KeyGenerationError
func IsKeyGenerationError(err error) bool {
	return hasTextCode(err, TextCodeKeyGenerationFailed)
}

// IsEncodingError reports whether err is an EncodingError
func IsEncodingError(err error) bool {
	return hasTextCode(err, TextCodeEncodingMalformed)
}

// IsRecordNotFound reports whether a store returned no record
func IsRecordNotFound(err error) bool {
	return hasTextCode(err, TextCodeRecordNotFound)
}

// ValidationFields returns the field names carried by a ValidationError.
func ValidationFields(err error) []string {
	var richErr *goerrors.Error
	if !errors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	fields, _ := richErr.Metadata["fields"].([]string)
	return fields
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
