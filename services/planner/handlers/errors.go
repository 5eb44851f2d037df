// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkforge-seo/linkforge/services/planner/engine"
	"github.com/linkforge-seo/linkforge/services/planner/storage"
)

// statusForError maps engine and storage sentinels onto HTTP status codes.
// Anything unrecognized is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, engine.ErrNoPages):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrRunActive),
		errors.Is(err, engine.ErrLinksExist),
		errors.Is(err, engine.ErrDuplicateLink),
		errors.Is(err, engine.ErrMandatoryLink):
		return http.StatusConflict
	case errors.Is(err, engine.ErrIncompleteContent),
		errors.Is(err, engine.ErrBudgetExceeded),
		errors.Is(err, engine.ErrSelfLink):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}
