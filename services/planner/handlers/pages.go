// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkforge-seo/linkforge/pkg/validation"
	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
	"github.com/linkforge-seo/linkforge/services/planner/storage"
)

// UpsertPages ingests collaborator pages into the page store. IDs and scope
// keys are validated because both end up embedded in storage keys.
func UpsertPages(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpsertPagesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(req.Pages) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pages cannot be empty"})
			return
		}

		ids := make([]string, 0, len(req.Pages))
		for i := range req.Pages {
			ids = append(ids, req.Pages[i].ID)
			key, err := validation.SanitizeScopeKey(req.Pages[i].ScopeKey)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			req.Pages[i].ScopeKey = key
		}
		if err := validation.ValidatePageIDs(ids); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := store.UpsertPages(req.Pages); err != nil {
			slog.Error("failed to upsert pages", "count", len(req.Pages), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store pages"})
			return
		}
		slog.Info("Upserted pages", "count", len(req.Pages))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "count": len(req.Pages)})
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "planner"})
}
