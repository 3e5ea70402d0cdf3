// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package database

import "errors"

// ErrNotFound is returned when a lookup matches no row. Callers translate
// it to HTTP 404; every other error is a 500.
var ErrNotFound = errors.New("not found")
