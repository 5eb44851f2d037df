// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers exposes the planner over HTTP: plan lifecycle, the link
// map, manual link curation, page upserts, and the websocket progress feed.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkforge-seo/linkforge/pkg/validation"
	"github.com/linkforge-seo/linkforge/services/planner/engine"
)

// StartPlanning kicks off a planning run for a scope. The run executes in the
// background; the response carries the initial status and callers poll the
// status endpoint (or subscribe to the websocket feed) for progress.
func StartPlanning(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopeKey, err := validation.SanitizeScopeKey(c.Param("scopeKey"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Info("Received request to start planning", "scope_key", scopeKey)

		run, err := planner.Start(c.Request.Context(), scopeKey)
		if err != nil {
			slog.Warn("failed to start planning run", "scope_key", scopeKey, "error", err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, run.Status())
	}
}

// Replan snapshots the scope, strips existing links, and rebuilds the plan
// from scratch.
func Replan(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopeKey, err := validation.SanitizeScopeKey(c.Param("scopeKey"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Info("Received request to re-plan", "scope_key", scopeKey)

		run, err := planner.Replan(c.Request.Context(), scopeKey)
		if err != nil {
			slog.Warn("failed to start re-plan", "scope_key", scopeKey, "error", err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, run.Status())
	}
}

// GetPlanningStatus reports the state of the scope's current or most recent
// run, including the stuck-after-strip condition that survives restarts.
func GetPlanningStatus(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopeKey, err := validation.SanitizeScopeKey(c.Param("scopeKey"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, planner.Status(scopeKey))
	}
}

// GetLinkMap returns the scope's full link graph with per-page summaries and
// aggregate stats.
func GetLinkMap(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopeKey, err := validation.SanitizeScopeKey(c.Param("scopeKey"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := planner.LinkMap(scopeKey)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
