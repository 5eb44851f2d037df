// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

func runPlan(cmd *cobra.Command, args []string) {
	scopeKey := args[0]
	var status datatypes.PlanStatus
	if err := apiCall("POST", "/v1/plans/"+scopeKey, nil, &status); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start planning: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(status)
		return
	}
	fmt.Printf("Planning started for scope %s (state: %s)\n", scopeKey, status.State)
	fmt.Printf("Follow along with: linkforge status %s --watch\n", scopeKey)
}

func runReplan(cmd *cobra.Command, args []string) {
	scopeKey := args[0]
	force, _ := cmd.Flags().GetBool("force")
	if !force {
		fmt.Fprintln(os.Stderr, "Re-planning strips every existing link in the scope before rebuilding.")
		fmt.Fprintln(os.Stderr, "A snapshot is taken first, but this is destructive. Re-run with --force to confirm.")
		os.Exit(1)
	}

	var status datatypes.PlanStatus
	if err := apiCall("POST", "/v1/plans/"+scopeKey+"/replan", nil, &status); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start re-plan: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(status)
		return
	}
	fmt.Printf("Re-plan started for scope %s (state: %s)\n", scopeKey, status.State)
}

func runStatus(cmd *cobra.Command, args []string) {
	scopeKey := args[0]

	for {
		var status datatypes.PlanStatus
		if err := apiCall("GET", "/v1/plans/"+scopeKey+"/status", nil, &status); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to fetch status: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(status)
		} else {
			printStatusLine(status)
		}

		if !watchProgress || status.State.Terminal() || status.State == datatypes.RunIdle {
			if status.State == datatypes.RunFailed || status.State == datatypes.RunFailedAfterStrip {
				os.Exit(1)
			}
			return
		}
		time.Sleep(2 * time.Second)
	}
}

func printStatusLine(status datatypes.PlanStatus) {
	line := fmt.Sprintf("[%s] %s", status.ScopeKey, status.State)
	if status.CurrentStep != "" {
		line += " - " + status.CurrentStep
	}
	if status.TotalPages > 0 {
		line += fmt.Sprintf(" (%d/%d pages)", status.PagesProcessed, status.TotalPages)
	}
	if status.Error != "" {
		line += " error: " + status.Error
	}
	fmt.Println(line)
}

func runMap(cmd *cobra.Command, args []string) {
	scopeKey := args[0]
	var linkMap datatypes.LinkMapResponse
	if err := apiCall("GET", "/v1/plans/"+scopeKey+"/map", nil, &linkMap); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch link map: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(linkMap)
		return
	}

	fmt.Printf("Link map for scope %s\n\n", linkMap.ScopeKey)
	fmt.Printf("%-24s %-8s %6s %6s %6s\n", "PAGE", "ROLE", "WORDS", "OUT", "IN")
	for _, page := range linkMap.Pages {
		role := string(page.Role)
		if role == "" {
			role = "-"
		}
		fmt.Printf("%-24s %-8s %6d %6d %6d\n",
			page.ID, role, page.WordCount, page.OutboundLinks, page.InboundLinks)
	}

	fmt.Printf("\nTotal links: %d  Avg/page: %.1f  Validation pass rate: %.0f%%\n",
		linkMap.Stats.TotalLinks, linkMap.Stats.AvgLinksPerPage,
		linkMap.Stats.ValidationPassRate*100)
	if len(linkMap.Stats.MethodBreakdown) > 0 {
		fmt.Printf("Placement: %v\n", linkMap.Stats.MethodBreakdown)
	}
	if len(linkMap.Stats.AnchorTypeBreakdown) > 0 {
		fmt.Printf("Anchors:   %v\n", linkMap.Stats.AnchorTypeBreakdown)
	}
}
