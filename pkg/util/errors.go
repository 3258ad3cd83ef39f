// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Only malformed input surfaces as a hard error; topology
// conditions (no route, loop, unresolved next-hop) are returned as data.
var (
	ErrInvalidPrefix    = errors.New("invalid prefix")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrParseFailure     = errors.New("routing table parse failed")
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrValidationFailed = errors.New("validation failed")
)

// PrefixError reports a CIDR, mask or prefix length that cannot be used
// as an IPv4 LPM key.
type PrefixError struct {
	Input  string
	Reason string
}

func (e *PrefixError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid prefix %q", e.Input)
	}
	return fmt.Sprintf("invalid prefix %q: %s", e.Input, e.Reason)
}

func (e *PrefixError) Unwrap() error {
	return ErrInvalidPrefix
}

// NewPrefixError creates a new prefix error
func NewPrefixError(input, reason string) *PrefixError {
	return &PrefixError{Input: input, Reason: reason}
}

// AddressError reports an unparseable IPv4 address.
type AddressError struct {
	Input string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid IPv4 address %q", e.Input)
}

func (e *AddressError) Unwrap() error {
	return ErrInvalidAddress
}

// NewAddressError creates a new address error
func NewAddressError(input string) *AddressError {
	return &AddressError{Input: input}
}

// ParseError reports a device capture that produced no usable routing table.
type ParseError struct {
	Device string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing routing table for %s: %s", e.Device, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParseFailure
}

// NewParseError creates a new parse error
func NewParseError(device, reason string) *ParseError {
	return &ParseError{Device: device, Reason: reason}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
