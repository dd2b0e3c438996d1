// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/pkg/errutil"
)

// StatusFor maps an error code to the HTTP status rendered for it.
func StatusFor(code string) int {
	switch code {
	case account.CodeInvalidInput, account.CodeWeakPassword, account.CodeUnknownPlan:
		return http.StatusBadRequest
	case account.CodeUserNotFound, account.CodeWrongPassword, account.CodeNoPasswordSet,
		account.CodeSessionInvalid, account.CodeSessionExpired:
		return http.StatusUnauthorized
	case account.CodeDuplicateEmail:
		return http.StatusConflict
	case account.CodeStorageError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// renderError writes {"error": reason}. Server-side failures are logged
// with their full context; the client only sees the public reason.
func (h *Handler) renderError(c *gin.Context, err error) {
	status := StatusFor(account.Code(err))
	if status >= http.StatusInternalServerError {
		errutil.LogError(h.logger, "request failed", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": account.Reason(err)})
}
