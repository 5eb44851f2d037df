// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

func TestApiCall_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/plans/silo-1/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(datatypes.PlanStatus{
			ScopeKey: "silo-1", State: datatypes.RunComplete,
		})
	}))
	defer srv.Close()
	config = Config{PlannerURL: srv.URL, TimeoutSeconds: 5}

	var status datatypes.PlanStatus
	if err := apiCall("GET", "/v1/plans/silo-1/status", nil, &status); err != nil {
		t.Fatalf("apiCall: %v", err)
	}
	if status.State != datatypes.RunComplete {
		t.Errorf("state = %v, want complete", status.State)
	}
}

func TestApiCall_SendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req datatypes.AddLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.SourcePageID != "a" || req.TargetPageID != "b" {
			t.Errorf("unexpected body: %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(datatypes.Link{ID: "lk-1"})
	}))
	defer srv.Close()
	config = Config{PlannerURL: srv.URL, TimeoutSeconds: 5}

	var link datatypes.Link
	err := apiCall("POST", "/v1/links",
		datatypes.AddLinkRequest{SourcePageID: "a", TargetPageID: "b", AnchorText: "x"}, &link)
	if err != nil {
		t.Fatalf("apiCall: %v", err)
	}
	if link.ID != "lk-1" {
		t.Errorf("link id = %q", link.ID)
	}
}

func TestApiCall_SurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"planning run already active for scope"}`))
	}))
	defer srv.Close()
	config = Config{PlannerURL: srv.URL, TimeoutSeconds: 5}

	err := apiCall("POST", "/v1/plans/silo-1", nil, nil)
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	if !strings.Contains(err.Error(), "already active") {
		t.Errorf("error should carry the server message, got %v", err)
	}
	if !strings.Contains(err.Error(), "409") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	tmp := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	t.Setenv("LINKFORGE_PLANNER_URL", "")

	config = Config{}
	loadConfig()
	if config.PlannerURL != defaultPlannerURL {
		t.Errorf("PlannerURL = %q, want default", config.PlannerURL)
	}
	if config.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d, want 60", config.TimeoutSeconds)
	}
}

func TestLoadConfig_FileAndEnvPrecedence(t *testing.T) {
	tmp := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	yaml := "planner_url: http://planner:9999\ntimeout_seconds: 5\n"
	if err := os.WriteFile(filepath.Join(tmp, "linkforge.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LINKFORGE_PLANNER_URL", "")
	config = Config{}
	loadConfig()
	if config.PlannerURL != "http://planner:9999" {
		t.Errorf("PlannerURL = %q, want file value", config.PlannerURL)
	}
	if config.TimeoutSeconds != 5 {
		t.Errorf("TimeoutSeconds = %d, want 5", config.TimeoutSeconds)
	}

	// Environment beats the file.
	t.Setenv("LINKFORGE_PLANNER_URL", "http://override:1234")
	config = Config{}
	loadConfig()
	if config.PlannerURL != "http://override:1234" {
		t.Errorf("PlannerURL = %q, want env override", config.PlannerURL)
	}
}
