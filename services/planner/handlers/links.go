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
	"github.com/linkforge-seo/linkforge/services/planner/engine"
)

// GetPageLinks lists a page's outbound links in document order plus its
// inbound links and anchor diversity score.
func GetPageLinks(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageID := c.Param("pageId")
		if err := validation.ValidatePageID(pageID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := planner.PageLinks(pageID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// AddManualLink injects a curator-chosen link between two pages in the same
// scope, subject to budget unless the request sets override.
func AddManualLink(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AddLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Info("Received request to add a manual link",
			"source", req.SourcePageID, "target", req.TargetPageID, "override", req.Override)

		link, err := planner.AddManualLink(c.Request.Context(), req)
		if err != nil {
			slog.Warn("failed to add manual link", "source", req.SourcePageID,
				"target", req.TargetPageID, "error", err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, link)
	}
}

// EditAnchor re-injects an existing link with new anchor text at the same
// paragraph position.
func EditAnchor(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		linkID := c.Param("linkId")
		var req datatypes.EditAnchorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Info("Received request to edit an anchor", "link_id", linkID)

		link, err := planner.EditAnchor(c.Request.Context(), linkID, req.NewText)
		if err != nil {
			slog.Warn("failed to edit anchor", "link_id", linkID, "error", err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

// RemoveLink deletes a non-mandatory link and unwraps its anchor in the page
// body.
func RemoveLink(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		linkID := c.Param("linkId")
		slog.Info("Received request to remove a link", "link_id", linkID)

		if err := planner.RemoveLink(c.Request.Context(), linkID); err != nil {
			slog.Warn("failed to remove link", "link_id", linkID, "error", err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "removed", "link_id": linkID})
	}
}
