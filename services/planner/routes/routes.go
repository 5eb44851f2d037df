// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linkforge-seo/linkforge/services/planner/engine"
	"github.com/linkforge-seo/linkforge/services/planner/handlers"
	"github.com/linkforge-seo/linkforge/services/planner/storage"
)

// SetupRoutes registers the planner API surface on the router.
func SetupRoutes(router *gin.Engine, planner *engine.Planner, store *storage.Store) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/pages", handlers.UpsertPages(store))
		v1.GET("/pages/:pageId/links", handlers.GetPageLinks(planner))

		// Plan lifecycle routes
		plans := v1.Group("/plans")
		{
			plans.POST("/:scopeKey", handlers.StartPlanning(planner))
			plans.POST("/:scopeKey/replan", handlers.Replan(planner))
			plans.GET("/:scopeKey/status", handlers.GetPlanningStatus(planner))
			plans.GET("/:scopeKey/map", handlers.GetLinkMap(planner))
			plans.GET("/:scopeKey/ws", handlers.HandlePlanWebSocket(planner))
		}

		// Manual curation routes
		links := v1.Group("/links")
		{
			links.POST("", handlers.AddManualLink(planner))
			links.PUT("/:linkId/anchor", handlers.EditAnchor(planner))
			links.DELETE("/:linkId", handlers.RemoveLink(planner))
		}
	}
}
