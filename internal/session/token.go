// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RenewalSkew is how close to expiry an access token may get before the
// manager renews it proactively instead of waiting for a 401.
const RenewalSkew = 30 * time.Second

// AccessTokenExpiry peeks the exp claim of an access token without verifying
// its signature.
//
// # Why unverified?
//
// The client does not hold the service's signing key and does not need to:
// the token is opaque credential material, and the expiry read here is only
// a scheduling hint. A forged exp merely triggers a renewal the service will
// judge on its own terms.
func AccessTokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiringSoon reports whether the token expires within [RenewalSkew] of now.
// Unparseable tokens report false: the reactive 401 path covers them.
func ExpiringSoon(token string, now time.Time) bool {
	expiry, ok := AccessTokenExpiry(token)
	if !ok {
		return false
	}
	return now.Add(RenewalSkew).After(expiry)
}
