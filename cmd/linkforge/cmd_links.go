// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

func runPagesPush(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read %s: %v\n", args[0], err)
		os.Exit(1)
	}

	// Accept either a bare page array or the full request envelope.
	var req datatypes.UpsertPagesRequest
	if err := json.Unmarshal(raw, &req); err != nil || len(req.Pages) == 0 {
		if err := json.Unmarshal(raw, &req.Pages); err != nil {
			fmt.Fprintf(os.Stderr, "Could not parse %s as pages JSON: %v\n", args[0], err)
			os.Exit(1)
		}
	}

	var resp map[string]any
	if err := apiCall("POST", "/v1/pages", req, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to push pages: %v\n", err)
		os.Exit(1)
	}
	if jsonOutput {
		printJSON(resp)
		return
	}
	fmt.Printf("Pushed %d page(s) to the planner\n", len(req.Pages))
}

func runLinkList(cmd *cobra.Command, args []string) {
	pageID := args[0]
	var resp datatypes.PageLinksResponse
	if err := apiCall("GET", "/v1/pages/"+pageID+"/links", nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list links: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(resp)
		return
	}

	fmt.Printf("Links for page %s\n\n", resp.PageID)
	fmt.Println("Outbound (document order):")
	if len(resp.Outbound) == 0 {
		fmt.Println("  (none)")
	}
	for _, link := range resp.Outbound {
		printLinkLine(link, link.TargetPageID)
	}

	fmt.Println("\nInbound:")
	if len(resp.Inbound) == 0 {
		fmt.Println("  (none)")
	}
	for _, link := range resp.Inbound {
		printLinkLine(link, link.SourcePageID)
	}
	fmt.Printf("\nAnchor diversity: %.2f\n", resp.AnchorDiversityScore)
}

func printLinkLine(link datatypes.Link, otherPage string) {
	mandatory := ""
	if link.IsMandatory {
		mandatory = " [mandatory]"
	}
	fmt.Printf("  %s  %-24s %q (%s, %s)%s\n",
		link.ID, otherPage, link.AnchorText, link.AnchorType, link.Method, mandatory)
}

func runLinkAdd(cmd *cobra.Command, args []string) {
	req := datatypes.AddLinkRequest{
		SourcePageID: args[0],
		TargetPageID: args[1],
		AnchorText:   args[2],
		Override:     linkOverride,
	}

	var link datatypes.Link
	if err := apiCall("POST", "/v1/links", req, &link); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to add link: %v\n", err)
		os.Exit(1)
	}
	if jsonOutput {
		printJSON(link)
		return
	}
	fmt.Printf("Added link %s: %s -> %s via %s (paragraph %d)\n",
		link.ID, link.SourcePageID, link.TargetPageID, link.Method, link.Position)
}

func runLinkEdit(cmd *cobra.Command, args []string) {
	req := datatypes.EditAnchorRequest{NewText: args[1]}

	var link datatypes.Link
	if err := apiCall("PUT", "/v1/links/"+args[0]+"/anchor", req, &link); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to edit anchor: %v\n", err)
		os.Exit(1)
	}
	if jsonOutput {
		printJSON(link)
		return
	}
	fmt.Printf("Updated link %s anchor to %q (%s, %s)\n",
		link.ID, link.AnchorText, link.AnchorType, link.Method)
}

func runLinkRemove(cmd *cobra.Command, args []string) {
	if err := apiCall("DELETE", "/v1/links/"+args[0], nil, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to remove link: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed link %s\n", args[0])
}
