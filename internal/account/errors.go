// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"errors"

	"github.com/samber/oops"
)

// Repository sentinels. Backends wrap these so callers can match with errors.Is.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a normalized email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Error codes surfaced by the auth and subscription services.
const (
	CodeDuplicateEmail    = "DUPLICATE_EMAIL"
	CodeWeakPassword      = "WEAK_PASSWORD"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeNoPasswordSet     = "NO_PASSWORD_SET"
	CodeWrongPassword     = "WRONG_PASSWORD"
	CodeUnknownPlan       = "UNKNOWN_PLAN"
	CodeStorageError      = "STORAGE_ERROR"
	CodeInconsistentState = "INCONSISTENT_STATE"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeSessionInvalid    = "SESSION_INVALID"
	CodeSessionExpired    = "SESSION_EXPIRED"
)

// publicReasons maps codes to messages that are safe to render to clients.
// Codes whose message is built from user input (WEAK_PASSWORD, INVALID_INPUT)
// use the error message instead.
var publicReasons = map[string]string{
	CodeDuplicateEmail:    "Email already registered.",
	CodeUserNotFound:      "User not found",
	CodeNoPasswordSet:     "No password set for this account",
	CodeWrongPassword:     "Wrong password",
	CodeUnknownPlan:       "Unknown plan",
	CodeStorageError:      "Service temporarily unavailable, please try again.",
	CodeInconsistentState: "Your request could not be completed, please contact support.",
	CodeSessionInvalid:    "Please log in.",
	CodeSessionExpired:    "Your session has expired, please log in again.",
}

// Code returns the oops error code carried by err, or "" if there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// Reason returns a human-readable message for err that never exposes
// internal store details.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	code := Code(err)
	switch code {
	case CodeWeakPassword, CodeInvalidInput:
		if oopsErr, ok := oops.AsOops(err); ok {
			return oopsErr.Error()
		}
	}
	if reason, ok := publicReasons[code]; ok {
		return reason
	}
	return "Something went wrong, please try again."
}
