// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "errors"

// Sentinel errors for the engine package.
var (
	// ErrRunActive indicates a planning run is already in flight for the scope.
	ErrRunActive = errors.New("planning run already active for scope")

	// ErrNoPages indicates the scope contains no pages.
	ErrNoPages = errors.New("scope has no pages")

	// ErrIncompleteContent indicates an in-scope page lacks completed content.
	ErrIncompleteContent = errors.New("scope has pages without completed content")

	// ErrLinksExist indicates start was called on a scope that already has
	// links; callers must use replan for a destructive rebuild.
	ErrLinksExist = errors.New("scope already has links, use replan")

	// ErrValidationFailed indicates a hard rule violation failed the plan.
	ErrValidationFailed = errors.New("plan validation failed")

	// ErrMandatoryPlacement indicates the mandatory child-to-parent link
	// could not be placed, which fails the whole run.
	ErrMandatoryPlacement = errors.New("mandatory parent link could not be placed")

	// ErrDuplicateLink indicates a link between the pair already exists.
	ErrDuplicateLink = errors.New("link between pair already exists")

	// ErrBudgetExceeded indicates the source page's link budget is full.
	ErrBudgetExceeded = errors.New("source page link budget exceeded")

	// ErrMandatoryLink indicates an operation is forbidden on a mandatory link.
	ErrMandatoryLink = errors.New("operation not allowed on mandatory link")

	// ErrSelfLink indicates source and target are the same page.
	ErrSelfLink = errors.New("page cannot link to itself")
)
