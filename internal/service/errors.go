package service

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation is the root of every user-correctable input error.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidDomain indicates the email domain does not match the applicant type.
	ErrInvalidDomain = errors.New("email domain not allowed for user type")
	// ErrInvalidAttachment indicates a photo failed the attachment policy.
	ErrInvalidAttachment = errors.New("attachment rejected")
	// ErrRateLimited indicates the caller exhausted its attempts for the current window.
	ErrRateLimited = errors.New("too many attempts")
	// ErrMailUnavailable indicates the mandatory admin notification could not be sent.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
	// ErrPhotoNotFound indicates the referenced photo does not exist.
	ErrPhotoNotFound = errors.New("photo not found")
	// ErrVoteNotFound indicates the juror has not voted on the photo yet.
	ErrVoteNotFound = errors.New("vote not found")
	// ErrStoreUnavailable indicates the vote could not be committed.
	ErrStoreUnavailable = errors.New("vote store unavailable")
)

// ValidationError names the field and rule an input failed.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrValidation
	}
	return e.Err
}

// Is makes every ValidationError match ErrValidation as well as its cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(cause error, field, rule, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Rule:    rule,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// RateLimitError carries how long the caller should wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// fromValidator converts the first validator failure into a ValidationError.
func fromValidator(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}

	fe := validationErrors[0]
	field := fe.Field()
	var message string
	switch fe.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", field)
	case "min":
		switch fe.Kind() {
		case reflect.Slice:
			message = fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		case reflect.String:
			message = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		default:
			message = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
	case "max":
		if fe.Kind() == reflect.String {
			message = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		} else {
			message = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		}
	case "email":
		message = fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		message = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		message = fmt.Sprintf("%s is invalid", field)
	}

	return &ValidationError{Field: field, Rule: fe.Tag(), Message: message, Err: ErrValidation}
}
