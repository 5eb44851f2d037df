// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/linkforge-seo/linkforge/services/planner/engine"
	"github.com/linkforge-seo/linkforge/services/planner/storage"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// mockRewriter is a minimal rewrite backend for handler tests.
type mockRewriter struct{}

func (m *mockRewriter) RewriteParagraph(_ context.Context, _, anchorText, _ string) (string, error) {
	return "See " + anchorText + " for the details.", nil
}

func (m *mockRewriter) GenerateNaturalPhrases(_ context.Context, _ string, n int) ([]string, error) {
	phrases := []string{"the full guide", "a closer look"}
	if n < len(phrases) {
		phrases = phrases[:n]
	}
	return phrases, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	store, err := storage.Open(storage.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	planner := engine.NewPlanner(store, &mockRewriter{}, engine.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	router := gin.New()
	SetupRoutes(router, planner, store)
	return router
}

// ============================================================================
// Route Registration Tests
// ============================================================================

func TestSetupRoutes_AllRoutesRegistered(t *testing.T) {
	router := newTestRouter(t)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/pages"},
		{"GET", "/v1/pages/:pageId/links"},
		{"POST", "/v1/plans/:scopeKey"},
		{"POST", "/v1/plans/:scopeKey/replan"},
		{"GET", "/v1/plans/:scopeKey/status"},
		{"GET", "/v1/plans/:scopeKey/map"},
		{"GET", "/v1/plans/:scopeKey/ws"},
		{"POST", "/v1/links"},
		{"PUT", "/v1/links/:linkId/anchor"},
		{"DELETE", "/v1/links/:linkId"},
	}

	routes := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", want.method, want.path)
		}
	}
}

// ============================================================================
// Route Handler Tests
// ============================================================================

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Content-Type") == "" {
		t.Error("Metrics endpoint should return Content-Type header")
	}
}

func TestSetupRoutes_UpsertThenStatus(t *testing.T) {
	router := newTestRouter(t)

	payload := `{"pages":[{"id":"hub-1","scope_key":"silo-9","scope_type":"cluster",
		"role":"parent","word_count":800,"primary_keyword":"trail shoes",
		"content_complete":true,"body_html":"<p>Shoes matter on loose ground.</p>"}]}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/pages", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("page upsert returned %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/plans/silo-9/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status returned %d: %s", w.Code, w.Body.String())
	}
	var status map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status["state"] != "idle" {
		t.Errorf("fresh scope state = %v, want idle", status["state"])
	}
}

func TestSetupRoutes_InvalidScopeKeyRejected(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/plans/silo--1/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed scope key returned %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSetupRoutes_StartPlanningUnknownScope(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/plans/no-such-scope", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("empty scope start returned %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSetupRoutes_AddLinkValidation(t *testing.T) {
	router := newTestRouter(t)

	// Missing required fields fails binding before any storage access.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/links", bytes.NewBufferString(`{"source_page_id":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("incomplete add-link returned %d, want %d", w.Code, http.StatusBadRequest)
	}
}
