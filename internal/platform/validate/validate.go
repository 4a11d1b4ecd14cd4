// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// This package is used exclusively in the session layer — never in the CLI
// shell or the transport. It guarantees that invalid input is rejected
// per-field before any network call is issued.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
)

var (
	// emailRegex matches the permissive address shape the service accepts:
	// something, an @, something, a dot, something.
	emailRegex = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	// phoneRegex matches the fixed country code followed by exactly 10 digits.
	phoneRegex = regexp.MustCompile(`^\+91\d{10}$`)
	// nonDigit matches every character OTP normalization strips.
	nonDigit = regexp.MustCompile(`\D`)

	// ErrInvalidJSON is returned when a payload cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// # OTP Normalization

// OTPLength is the exact number of digits in a one-time password.
const OTPLength = 6

// NormalizeOTP strips every non-digit character from user-entered OTP input.
//
// The operation is idempotent: normalizing an already-normalized code is a
// no-op, so callers may apply it on every keystroke and again on submit.
func NormalizeOTP(input string) string {
	return nonDigit.ReplaceAllString(input, "")
}

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// Email fails if the value does not look like an email address.
func (v *Validator) Email(field, value string) *Validator {
	if !emailRegex.MatchString(value) {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// Phone fails if the value is not a +91 country code followed by 10 digits.
func (v *Validator) Phone(field, value string) *Validator {
	if !phoneRegex.MatchString(value) {
		v.add(field, "Phone must be in format +91xxxxxxxxxx")
	}
	return v
}

// OTP fails unless the value is exactly [OTPLength] digits.
//
// Callers must pass input through [NormalizeOTP] first; this rule does not
// strip characters itself so the failure message stays accurate.
func (v *Validator) OTP(field, value string) *Validator {
	if len(value) != OTPLength || nonDigit.MatchString(value) {
		v.add(field, fmt.Sprintf("Please enter a valid %d-digit OTP", OTPLength))
	}
	return v
}

// Password fails if the value is shorter than 8 characters.
//
// This is the registration/login rule; password reset additionally requires
// [StrongPassword].
func (v *Validator) Password(field, value string) *Validator {
	if utf8.RuneCountInString(value) < 8 {
		v.add(field, "Password must be at least 8 characters")
	}
	return v
}

// StrongPassword fails unless the value is at least 8 characters and contains
// at least one lowercase letter, one uppercase letter, and one digit.
func (v *Validator) StrongPassword(field, value string) *Validator {
	if utf8.RuneCountInString(value) < 8 {
		v.add(field, "Password must be at least 8 characters")
		return v
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range value {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLower || !hasUpper || !hasDigit {
		v.add(field, "Password must contain uppercase, lowercase, and number")
	}
	return v
}

// Custom adds a failure with a custom message if the condition is true.
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method — call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}
