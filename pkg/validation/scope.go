// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for identifiers that end up
// in storage keys and URLs. Scope keys and page IDs arrive from external
// callers and are embedded in key prefixes, so they must never contain
// separators or traversal sequences.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// identPattern matches valid scope keys and page IDs: lowercase
// alphanumeric segments joined by single hyphens or underscores, 1-64
// characters. Slashes are forbidden because both identifiers are embedded
// in key prefixes.
var identPattern = regexp.MustCompile(`^[a-z0-9]+([_-][a-z0-9]+)*$`)

const maxIdentLen = 64

// ValidateScopeKey validates a planning scope key.
//
// Valid keys are 1-64 characters of lowercase alphanumerics with interior
// hyphens or underscores, e.g. "winter-boots-silo" or "onboarding_2026".
func ValidateScopeKey(key string) error {
	if key == "" {
		return fmt.Errorf("scope key cannot be empty")
	}
	if len(key) > maxIdentLen {
		return fmt.Errorf("scope key too long: %d chars (max %d)", len(key), maxIdentLen)
	}
	if !identPattern.MatchString(key) {
		return fmt.Errorf("invalid scope key %q (lowercase alphanumerics, hyphens, underscores)", key)
	}
	return nil
}

// ValidatePageID validates a page identifier. Same shape as scope keys.
func ValidatePageID(id string) error {
	if id == "" {
		return fmt.Errorf("page id cannot be empty")
	}
	if len(id) > maxIdentLen {
		return fmt.Errorf("page id too long: %d chars (max %d)", len(id), maxIdentLen)
	}
	if !identPattern.MatchString(id) {
		return fmt.Errorf("invalid page id %q (lowercase alphanumerics, hyphens, underscores)", id)
	}
	return nil
}

// ValidatePageIDs validates a batch of page IDs, reporting every invalid
// one at once.
func ValidatePageIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidatePageID(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid page ids: %v", invalid)
	}
	return nil
}

// SanitizeScopeKey normalizes and validates a scope key: trims whitespace,
// lowercases, then validates. Returns the normalized key.
func SanitizeScopeKey(key string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if err := ValidateScopeKey(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
