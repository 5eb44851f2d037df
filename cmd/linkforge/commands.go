// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	jsonOutput    bool
	watchProgress bool
	linkOverride  bool

	rootCmd = &cobra.Command{
		Use:   "linkforge",
		Short: "A cli to drive the LinkForge internal-link planner",
		Long: `LinkForge plans and injects internal links across collection
				pages. This CLI talks to the planner service API.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadConfig()
		},
	}

	// --- Planning ---
	planCmd = &cobra.Command{
		Use:   "plan [scope-key]",
		Short: "Start a planning run for a scope",
		Args:  cobra.ExactArgs(1),
		Run:   runPlan, // Defined in cmd_plan.go
	}

	replanCmd = &cobra.Command{
		Use:   "replan [scope-key]",
		Short: "DANGER: Snapshot, strip, and rebuild all links for a scope",
		Args:  cobra.ExactArgs(1),
		Run:   runReplan, // Defined in cmd_plan.go
	}

	statusCmd = &cobra.Command{
		Use:   "status [scope-key]",
		Short: "Show the state of a scope's planning run",
		Args:  cobra.ExactArgs(1),
		Run:   runStatus, // Defined in cmd_plan.go
	}

	mapCmd = &cobra.Command{
		Use:   "map [scope-key]",
		Short: "Print the scope's link map with per-page stats",
		Args:  cobra.ExactArgs(1),
		Run:   runMap, // Defined in cmd_plan.go
	}

	// --- Pages ---
	pagesCmd = &cobra.Command{
		Use:   "pages",
		Short: "Manage pages in the planner store",
	}
	pagesPushCmd = &cobra.Command{
		Use:   "push [json-file]",
		Short: "Upsert pages from a JSON file into the planner",
		Args:  cobra.ExactArgs(1),
		Run:   runPagesPush, // Defined in cmd_links.go
	}

	// --- Manual link curation ---
	linkCmd = &cobra.Command{
		Use:   "link",
		Short: "Curate individual links",
	}
	linkListCmd = &cobra.Command{
		Use:   "list [page-id]",
		Short: "List a page's outbound and inbound links",
		Args:  cobra.ExactArgs(1),
		Run:   runLinkList, // Defined in cmd_links.go
	}
	linkAddCmd = &cobra.Command{
		Use:   "add [source-page] [target-page] [anchor-text]",
		Short: "Add a manual link between two pages in the same scope",
		Args:  cobra.ExactArgs(3),
		Run:   runLinkAdd, // Defined in cmd_links.go
	}
	linkEditCmd = &cobra.Command{
		Use:   "edit [link-id] [new-anchor-text]",
		Short: "Replace a link's anchor text in place",
		Args:  cobra.ExactArgs(2),
		Run:   runLinkEdit, // Defined in cmd_links.go
	}
	linkRemoveCmd = &cobra.Command{
		Use:   "remove [link-id]",
		Short: "Remove a non-mandatory link and unwrap its anchor",
		Args:  cobra.ExactArgs(1),
		Run:   runLinkRemove, // Defined in cmd_links.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output raw JSON for scripting")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(replanCmd)
	replanCmd.Flags().Bool("force", false, "Required to confirm the destructive re-plan")

	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&watchProgress, "watch", "w", false,
		"Poll until the run reaches a terminal state")

	rootCmd.AddCommand(mapCmd)

	rootCmd.AddCommand(pagesCmd)
	pagesCmd.AddCommand(pagesPushCmd)

	rootCmd.AddCommand(linkCmd)
	linkCmd.AddCommand(linkListCmd)
	linkCmd.AddCommand(linkAddCmd)
	linkAddCmd.Flags().BoolVar(&linkOverride, "override", false,
		"Exceed the source page's link budget")
	linkCmd.AddCommand(linkEditCmd)
	linkCmd.AddCommand(linkRemoveCmd)
}
