// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultPlannerURL = "http://localhost:12310"

// Config is the CLI configuration, loaded from linkforge.yaml in the working
// directory when present. Everything has a working default so the file is
// optional, unlike flags it survives between invocations.
type Config struct {
	// PlannerURL is the base URL of the planner service.
	PlannerURL string `yaml:"planner_url"`

	// TimeoutSeconds bounds each API call. Default 60.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// loadConfig populates the global config from linkforge.yaml, the
// LINKFORGE_PLANNER_URL environment variable, and defaults, in ascending
// precedence for the URL.
func loadConfig() {
	configPath := "linkforge.yaml"
	yamlFile, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(yamlFile, &config); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("Error reading %s: %v", configPath, err)
	}

	if url := os.Getenv("LINKFORGE_PLANNER_URL"); url != "" {
		config.PlannerURL = url
	}
	if config.PlannerURL == "" {
		config.PlannerURL = defaultPlannerURL
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 60
	}
}
