// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/juju/errors"
)

// IsNotFoundError reports whether err is an ARM response with status
// 404.
func IsNotFoundError(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// IsAuthorizationError reports whether err means the caller could not
// be authenticated or is not allowed to perform the request.
func IsAuthorizationError(err error) bool {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return true
	}
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	switch respErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	switch respErr.ErrorCode {
	case "AuthorizationFailed", "InvalidAuthenticationToken", "ExpiredAuthenticationToken":
		return true
	}
	return false
}

// apiError converts an SDK error into a short juju error carrying the
// ARM error code, classified as not found or unauthorized where
// appropriate. The full response is logged at debug level.
func apiError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		if IsAuthorizationError(err) {
			return errors.NewUnauthorized(err, msg)
		}
		return errors.Annotate(err, msg)
	}
	logger.Debugf("%s: %v", msg, err)

	code := respErr.ErrorCode
	if code == "" {
		code = http.StatusText(respErr.StatusCode)
	}
	summary := errors.Errorf("%s (HTTP %d)", code, respErr.StatusCode)
	switch {
	case IsNotFoundError(err):
		return errors.NewNotFound(summary, msg)
	case IsAuthorizationError(err):
		return errors.NewUnauthorized(summary, msg)
	}
	return errors.Annotate(summary, msg)
}
