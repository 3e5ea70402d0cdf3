// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/rewatched/rewatched/internal/config"
)

// ErrInvalidCredentials is returned for any username or password mismatch.
// The two cases are deliberately indistinguishable to callers.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialChecker verifies the single admin credential pair.
type CredentialChecker struct {
	username     string
	passwordHash []byte
}

// NewCredentialChecker builds a checker from security config. The password
// hash must be bcrypt; config.Load hashes a plaintext dev password before
// this point.
func NewCredentialChecker(cfg *config.SecurityConfig) (*CredentialChecker, error) {
	if cfg.AdminUsername == "" || cfg.AdminPasswordHash == "" {
		return nil, errors.New("admin_username and admin_password_hash are required")
	}
	return &CredentialChecker{
		username:     cfg.AdminUsername,
		passwordHash: []byte(cfg.AdminPasswordHash),
	}, nil
}

// Check verifies a login attempt. bcrypt runs even on a username mismatch
// to keep the two failure paths in the same timing envelope.
func (c *CredentialChecker) Check(username, password string) error {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passwordErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))
	if !usernameOK || passwordErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
