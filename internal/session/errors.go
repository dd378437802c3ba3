// Package session owns the OAuth token lifecycle for the single drivecast
// user: it hands out authorized HTTP clients, refreshes tokens that are about
// to expire, builds consent URLs, exchanges authorization codes, and revokes.
package session

import (
	"errors"

	"golang.org/x/oauth2"
)

// Sentinel errors. Use errors.Is(err, session.ErrAuthExpired) to check.
var (
	// ErrNotAuthenticated means no token record exists.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrAuthExpired means a token exists but could not be refreshed, or the
	// remote API rejected it.
	ErrAuthExpired = errors.New("session: authorization expired")
	// ErrInvalidGrant means the provider rejected an authorization code.
	ErrInvalidGrant = errors.New("session: authorization code rejected")
)

// oauthErrInvalidGrant is the RFC 6749 error code for a revoked, expired, or
// otherwise unusable grant.
const oauthErrInvalidGrant = "invalid_grant"

// IsAuthError reports whether err means the caller must (re-)authenticate.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrAuthExpired) ||
		errors.Is(err, ErrInvalidGrant)
}

// isRejectedCode reports whether the token endpoint refused an authorization
// code: an explicit invalid_grant or any other 4xx answer. 5xx answers and
// transport failures are provider outages, not rejections.
func isRejectedCode(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}

	if re.ErrorCode == oauthErrInvalidGrant {
		return true
	}

	return re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
}

// isInvalidGrant reports whether the token endpoint explicitly said the grant
// is no longer valid. Network failures and 5xx responses are not.
func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}

	return re.ErrorCode == oauthErrInvalidGrant
}
