// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package config

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Validate checks the loaded configuration for consistency and fills in
// derived values (notably the bcrypt hash for a plaintext dev password).
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Tautulli.URL == "" {
		return fmt.Errorf("tautulli.url is required")
	}
	if c.Tautulli.APIKey == "" {
		return fmt.Errorf("tautulli.api_key is required")
	}
	if c.Tautulli.PageSize <= 0 {
		return fmt.Errorf("tautulli.page_size must be positive")
	}

	if c.Overseerr.Enabled {
		if c.Overseerr.URL == "" {
			return fmt.Errorf("overseerr.url is required when overseerr is enabled")
		}
		if c.Overseerr.APIKey == "" {
			return fmt.Errorf("overseerr.api_key is required when overseerr is enabled")
		}
	}

	if c.Stats.BingeGap <= 0 {
		return fmt.Errorf("stats.binge_gap must be positive")
	}
	if c.Stats.TopContentCap <= 0 || c.Stats.TopTagCap <= 0 {
		return fmt.Errorf("stats rank caps must be positive")
	}
	if c.Stats.Timezone != "" {
		if _, err := time.LoadLocation(c.Stats.Timezone); err != nil {
			return fmt.Errorf("stats.timezone %q is not a valid IANA zone: %w", c.Stats.Timezone, err)
		}
	}

	if c.Generation.Workers <= 0 {
		return fmt.Errorf("generation.workers must be positive")
	}

	if c.Email.Enabled {
		if c.Email.Host == "" {
			return fmt.Errorf("email.host is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateSecurity() error {
	production := c.Server.Environment == "production"

	if production {
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters in production")
		}
		if c.Security.AdminUsername == "" {
			return fmt.Errorf("security.admin_username is required in production")
		}
		if c.Security.AdminPassword == "" && c.Security.AdminPasswordHash == "" {
			return fmt.Errorf("security.admin_password or admin_password_hash is required in production")
		}
	}

	// A plaintext password (dev convenience) is hashed at load time so the
	// rest of the process only ever sees the bcrypt hash.
	if c.Security.AdminPassword != "" && c.Security.AdminPasswordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Security.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		c.Security.AdminPasswordHash = string(hash)
	}
	c.Security.AdminPassword = ""

	return nil
}
