// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type callerContextKey struct{}

// Claims identify the caller by address in the subject
type Claims struct {
	jwt.RegisteredClaims
}

// Identity issues and validates HS256 caller tokens
type Identity struct {
	signingKey []byte
	issuer     string
}

func NewIdentity(signingKey string, issuer string) *Identity {
	return &Identity{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// IssueToken returns a signed token for caller valid for ttl
func (i *Identity) IssueToken(
	caller cert.Address,
	ttl time.Duration,
) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(i.signingKey)
}

// Validate returns the caller address carried by a token
func (i *Identity) Validate(tokenString string) (cert.Address, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(*jwt.Token) (any, error) {
			return i.signingKey, nil
		},
		opts...,
	)
	if err != nil {
		return cert.Address{}, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return cert.Address{}, ErrInvalidToken
	}
	caller, err := cert.ParseAddress(claims.Subject)
	if err != nil {
		return cert.Address{}, errors.Join(ErrInvalidToken, err)
	}
	return caller, nil
}

// bearerToken extracts the token from an Authorization header value
func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func withCaller(ctx context.Context, caller cert.Address) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the authenticated caller, or the zero address
func CallerFromContext(ctx context.Context) cert.Address {
	caller, ok := ctx.Value(callerContextKey{}).(cert.Address)
	if !ok {
		return cert.ZeroAddress
	}
	return caller
}
