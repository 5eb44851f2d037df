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
	"github.com/gorilla/websocket"

	"github.com/linkforge-seo/linkforge/pkg/validation"
	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
	"github.com/linkforge-seo/linkforge/services/planner/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

func sendStatus(ws *websocket.Conn, status datatypes.PlanStatus) error {
	err := ws.WriteJSON(status)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandlePlanWebSocket streams planning progress for a scope. With a run in
// flight the client receives every status transition through the terminal
// state; otherwise it receives the current status once. Either way the server
// closes the connection when there is nothing more to say.
func HandlePlanWebSocket(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopeKey, err := validation.SanitizeScopeKey(c.Param("scopeKey"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("Websocket client connected", "scope_key", scopeKey)

		run, active := planner.ActiveRun(scopeKey)
		if !active {
			_ = sendStatus(ws, planner.Status(scopeKey))
			return
		}

		updates, cancel := run.Subscribe()
		defer cancel()

		// The client never sends application data; the read loop only
		// detects disconnects.
		disconnected := make(chan struct{})
		go func() {
			defer close(disconnected)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case status, ok := <-updates:
				if !ok {
					return
				}
				if err := sendStatus(ws, status); err != nil {
					return
				}
				if status.State.Terminal() {
					slog.Info("Planning run reached terminal state, closing feed",
						"scope_key", scopeKey, "state", status.State)
					return
				}
			case <-disconnected:
				slog.Info("Websocket client disconnected", "scope_key", scopeKey)
				return
			}
		}
	}
}
