// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
	"github.com/linkforge-seo/linkforge/services/planner/graph"
	"github.com/linkforge-seo/linkforge/services/planner/inject"
	"github.com/linkforge-seo/linkforge/services/planner/observability"
	"github.com/linkforge-seo/linkforge/services/planner/rewrite"
)

var tracer = otel.Tracer("linkforge.planner")

// Store is the persistence surface the pipeline needs. *storage.Store
// satisfies it; tests may substitute their own.
type Store interface {
	GetPage(id string) (datatypes.Page, error)
	PagesByScope(scopeKey string) ([]datatypes.Page, error)
	UpdatePageHTML(id, bodyHTML string) error

	GetLink(id string) (datatypes.Link, error)
	LinksByScope(scopeKey string) ([]datatypes.Link, error)
	PutLink(link datatypes.Link) error
	DeleteLink(id string) error
	DeleteScopeLinks(scopeKey string) (int, error)

	PutSnapshot(snap datatypes.PlanSnapshot) error
	SnapshotsByScope(scopeKey string) ([]datatypes.PlanSnapshot, error)
	PutMarker(m datatypes.ReplanMarker) error
	GetMarker(scopeKey string) (datatypes.ReplanMarker, error)
	DeleteMarker(scopeKey string) error

	CommitPlan(scopeKey string, links []datatypes.Link, pageHTML map[string]string, marker *datatypes.ReplanMarker) error
}

// Options tunes a Planner. Zero values pick sane defaults.
type Options struct {
	// OverlapThreshold is the minimum shared-label count for onboarding
	// graph edges. Defaults to graph.DefaultOverlapThreshold.
	OverlapThreshold int

	// InjectWorkers bounds concurrent per-page injection. Defaults to 4.
	// Selection and anchor choice stay sequential regardless; only the
	// per-page HTML mutation fans out.
	InjectWorkers int

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Planner owns planning runs. One run per scope key at a time; runs for
// different scopes proceed independently.
type Planner struct {
	store    Store
	rewriter rewrite.Rewriter
	opts     Options

	mu   sync.Mutex
	runs map[string]*Run
}

// NewPlanner wires a planner over a store and a rewrite backend.
func NewPlanner(store Store, rw rewrite.Rewriter, opts Options) *Planner {
	if opts.OverlapThreshold <= 0 {
		opts.OverlapThreshold = graph.DefaultOverlapThreshold
	}
	if opts.InjectWorkers <= 0 {
		opts.InjectWorkers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.Default
	}
	return &Planner{
		store:    store,
		rewriter: &meteredRewriter{rw: rw, m: opts.Metrics},
		opts:     opts,
		runs:     make(map[string]*Run),
	}
}

// =============================================================================
// Run handle
// =============================================================================

// Run is the handle for one planning run. Status is safe to read while the
// run progresses; Done closes when the run reaches a terminal state.
type Run struct {
	scopeKey string
	scope    datatypes.ScopeType
	replan   bool

	mu     sync.Mutex
	status datatypes.PlanStatus
	subs   map[int]chan datatypes.PlanStatus
	nextID int
	done   chan struct{}
}

func newRun(scopeKey string, scope datatypes.ScopeType, replan bool) *Run {
	return &Run{
		scopeKey: scopeKey,
		scope:    scope,
		replan:   replan,
		status:   datatypes.PlanStatus{ScopeKey: scopeKey, State: datatypes.RunIdle},
		subs:     make(map[int]chan datatypes.PlanStatus),
		done:     make(chan struct{}),
	}
}

// Status returns a copy of the current run status.
func (r *Run) Status() datatypes.PlanStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Done closes when the run terminates.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Subscribe registers a status feed for progress streaming. The returned
// cancel must be called when the consumer goes away. Slow consumers miss
// intermediate updates rather than blocking the pipeline.
func (r *Run) Subscribe() (<-chan datatypes.PlanStatus, func()) {
	ch := make(chan datatypes.PlanStatus, 16)
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	cur := r.status
	r.mu.Unlock()

	ch <- cur
	cancel := func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Run) publishLocked() {
	for _, ch := range r.subs {
		select {
		case ch <- r.status:
		default:
		}
	}
}

func (r *Run) setState(state datatypes.RunState, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.State = state
	r.status.CurrentStep = step
	r.status.PagesProcessed = 0
	r.status.TotalPages = 0
	r.publishLocked()
}

func (r *Run) setProgress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.PagesProcessed = done
	r.status.TotalPages = total
	r.publishLocked()
}

func (r *Run) finish(state datatypes.RunState, err error) {
	r.mu.Lock()
	r.status.State = state
	r.status.CurrentStep = ""
	if err != nil {
		r.status.Error = err.Error()
	}
	r.publishLocked()
	r.mu.Unlock()
	close(r.done)
}

// =============================================================================
// Run admission
// =============================================================================

// Start begins a fresh planning run for the scope. It fails fast when the
// scope is empty, has incomplete content, already carries links, or already
// has a run in flight. The returned Run is already executing.
func (p *Planner) Start(ctx context.Context, scopeKey string) (*Run, error) {
	return p.begin(ctx, scopeKey, false)
}

// Replan begins a destructive re-plan: snapshot, strip, delete, then a full
// run. Unlike Start it accepts scopes that already have links.
func (p *Planner) Replan(ctx context.Context, scopeKey string) (*Run, error) {
	return p.begin(ctx, scopeKey, true)
}

func (p *Planner) begin(ctx context.Context, scopeKey string, replan bool) (*Run, error) {
	pages, err := p.store.PagesByScope(scopeKey)
	if err != nil {
		return nil, fmt.Errorf("load scope %s: %w", scopeKey, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("scope %s: %w", scopeKey, ErrNoPages)
	}
	for _, pg := range pages {
		if !pg.ContentComplete {
			return nil, fmt.Errorf("page %s: %w", pg.ID, ErrIncompleteContent)
		}
	}
	existing, err := p.store.LinksByScope(scopeKey)
	if err != nil {
		return nil, fmt.Errorf("load links for %s: %w", scopeKey, err)
	}
	if !replan && len(existing) > 0 {
		return nil, fmt.Errorf("scope %s has %d links: %w", scopeKey, len(existing), ErrLinksExist)
	}

	run := newRun(scopeKey, pages[0].Scope, replan)

	p.mu.Lock()
	if prev, ok := p.runs[scopeKey]; ok && !prev.Status().State.Terminal() {
		p.mu.Unlock()
		return nil, fmt.Errorf("scope %s: %w", scopeKey, ErrRunActive)
	}
	p.runs[scopeKey] = run
	p.mu.Unlock()

	go p.execute(context.WithoutCancel(ctx), run, pages, existing)
	return run, nil
}

// Status reports the scope's planning state. An in-flight or recently
// finished run reports its own state; otherwise a leftover re-plan marker in
// the stripped phase surfaces as failed_after_strip so operators see scopes
// needing manual recovery even across restarts.
func (p *Planner) Status(scopeKey string) datatypes.PlanStatus {
	p.mu.Lock()
	run := p.runs[scopeKey]
	p.mu.Unlock()
	if run != nil {
		return run.Status()
	}

	if m, err := p.store.GetMarker(scopeKey); err == nil && m.Phase == datatypes.PhaseStripped {
		return datatypes.PlanStatus{
			ScopeKey: scopeKey,
			State:    datatypes.RunFailedAfterStrip,
			Error:    "re-plan failed after strip; snapshot " + m.SnapshotID + " retained",
		}
	}
	return datatypes.PlanStatus{ScopeKey: scopeKey, State: datatypes.RunIdle}
}

// ActiveRun returns the scope's run handle when one is in flight.
func (p *Planner) ActiveRun(scopeKey string) (*Run, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	run, ok := p.runs[scopeKey]
	if !ok || run.Status().State.Terminal() {
		return nil, false
	}
	return run, true
}

// =============================================================================
// Pipeline execution
// =============================================================================

func (p *Planner) execute(ctx context.Context, run *Run, pages []datatypes.Page, existing []datatypes.Link) {
	ctx, span := tracer.Start(ctx, "planner.Run", trace.WithAttributes(
		attribute.String("scope_key", run.scopeKey),
		attribute.String("scope_type", string(run.scope)),
		attribute.Bool("replan", run.replan),
		attribute.Int("pages", len(pages)),
	))
	defer span.End()

	m := p.opts.Metrics
	logger := p.opts.Logger.With("scope_key", run.scopeKey)
	started := time.Now()
	m.ActiveRuns.Inc()
	defer m.ActiveRuns.Dec()

	stripped := false
	markerWritten := false

	fail := func(err error) {
		state := datatypes.RunFailed
		outcome := "failed"
		if stripped {
			// The snapshot and the stripped-phase marker stay behind for
			// manual recovery.
			state = datatypes.RunFailedAfterStrip
			outcome = "failed_after_strip"
		} else if markerWritten {
			if derr := p.store.DeleteMarker(run.scopeKey); derr != nil {
				logger.Error("failed to clear re-plan marker", "error", derr)
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.RunsTotal.WithLabelValues(string(run.scope), outcome).Inc()
		m.RunDurationSeconds.WithLabelValues(string(run.scope)).Observe(time.Since(started).Seconds())
		logger.Error("planning run failed", "state", state, "error", err)
		run.finish(state, err)
	}

	var marker *datatypes.ReplanMarker
	if run.replan {
		snapID, err := p.snapshotAndStrip(ctx, run, pages, existing)
		if err != nil {
			fail(err)
			return
		}
		markerWritten = true
		stripped = true
		marker = &datatypes.ReplanMarker{
			ScopeKey:   run.scopeKey,
			SnapshotID: snapID,
			Phase:      datatypes.PhaseRebuilt,
			UpdatedAt:  time.Now().Unix(),
		}

		// Reload pages so planning sees the stripped bodies.
		pages, err = p.store.PagesByScope(run.scopeKey)
		if err != nil {
			fail(fmt.Errorf("reload scope after strip: %w", err))
			return
		}
	}

	links, pageHTML, err := p.plan(ctx, run, pages)
	if err != nil {
		fail(err)
		return
	}

	run.setState(datatypes.RunValidating, "validating plan")
	results, err := func() ([]datatypes.PageValidation, error) {
		_, vspan := tracer.Start(ctx, "planner.Validate")
		defer vspan.End()
		return ValidatePlan(pages, links)
	}()
	if err != nil {
		for _, r := range results {
			if rule, ok := failedRule(r.Status); ok {
				m.ValidationFailuresTotal.WithLabelValues(rule).Inc()
			}
		}
		fail(err)
		return
	}
	for i := range links {
		links[i].Status = datatypes.LinkVerified
	}

	if err := p.store.CommitPlan(run.scopeKey, links, pageHTML, marker); err != nil {
		fail(fmt.Errorf("commit plan: %w", err))
		return
	}
	if run.replan {
		if err := p.store.DeleteMarker(run.scopeKey); err != nil {
			logger.Warn("rebuilt marker left behind", "error", err)
		}
	}

	for _, l := range links {
		m.LinksPlannedTotal.WithLabelValues(string(l.AnchorType), string(l.Method)).Inc()
	}
	m.RunsTotal.WithLabelValues(string(run.scope), "complete").Inc()
	m.RunDurationSeconds.WithLabelValues(string(run.scope)).Observe(time.Since(started).Seconds())
	span.SetAttributes(attribute.Int("links_planned", len(links)))
	span.SetStatus(codes.Ok, "")
	logger.Info("planning run complete",
		"links", len(links), "pages", len(pages), "duration", time.Since(started))
	run.finish(datatypes.RunComplete, nil)
}

// snapshotAndStrip runs the destructive re-plan prefix: snapshot the current
// plan, strip engine links from every page, delete the scope's link records.
// Each phase advance persists before the next phase begins.
func (p *Planner) snapshotAndStrip(ctx context.Context, run *Run, pages []datatypes.Page, existing []datatypes.Link) (string, error) {
	_, span := tracer.Start(ctx, "planner.SnapshotAndStrip")
	defer span.End()

	run.setState(datatypes.RunSnapshotting, "snapshotting current plan")
	snap := datatypes.PlanSnapshot{
		ID:         uuid.NewString(),
		ScopeKey:   run.scopeKey,
		PageHTML:   make(map[string]string, len(pages)),
		Links:      existing,
		TotalLinks: len(existing),
		CreatedAt:  time.Now().Unix(),
	}
	for _, pg := range pages {
		snap.PageHTML[pg.ID] = pg.BodyHTML
	}
	if err := p.store.PutSnapshot(snap); err != nil {
		return "", fmt.Errorf("snapshot scope: %w", err)
	}
	if err := p.store.PutMarker(datatypes.ReplanMarker{
		ScopeKey: run.scopeKey, SnapshotID: snap.ID,
		Phase: datatypes.PhaseSnapshotted, UpdatedAt: time.Now().Unix(),
	}); err != nil {
		return "", fmt.Errorf("write snapshotted marker: %w", err)
	}

	run.setState(datatypes.RunStripping, "stripping engine links")
	for i, pg := range pages {
		body, removed, err := inject.StripEngineLinks(pg.BodyHTML)
		if err != nil {
			return "", fmt.Errorf("strip page %s: %w", pg.ID, err)
		}
		if removed > 0 {
			if err := p.store.UpdatePageHTML(pg.ID, body); err != nil {
				return "", fmt.Errorf("store stripped page %s: %w", pg.ID, err)
			}
		}
		run.setProgress(i+1, len(pages))
	}
	if err := p.store.PutMarker(datatypes.ReplanMarker{
		ScopeKey: run.scopeKey, SnapshotID: snap.ID,
		Phase: datatypes.PhaseStripped, UpdatedAt: time.Now().Unix(),
	}); err != nil {
		return "", fmt.Errorf("write stripped marker: %w", err)
	}

	run.setState(datatypes.RunDeleting, "deleting link records")
	if _, err := p.store.DeleteScopeLinks(run.scopeKey); err != nil {
		return "", fmt.Errorf("delete scope links: %w", err)
	}
	return snap.ID, nil
}

// anchorAssignment is a planned link with its chosen anchor.
type anchorAssignment struct {
	link   PlannedLink
	anchor AnchorCandidate
}

// plan runs graph build, target selection, anchor selection, and injection,
// returning the link records and mutated page bodies ready to commit.
func (p *Planner) plan(ctx context.Context, run *Run, pages []datatypes.Page) ([]datatypes.Link, map[string]string, error) {
	logger := p.opts.Logger.With("scope_key", run.scopeKey)

	run.setState(datatypes.RunBuildingGraph, "building relationship graph")
	var g graph.Graph
	var err error
	func() {
		_, span := tracer.Start(ctx, "planner.BuildGraph")
		defer span.End()
		if run.scope == datatypes.ScopeCluster {
			g, err = graph.BuildCluster(pages)
		} else {
			g = graph.BuildOnboarding(pages, p.opts.OverlapThreshold)
		}
	}()
	if err != nil {
		return nil, nil, fmt.Errorf("build graph: %w", err)
	}

	run.setState(datatypes.RunSelectingTargets, "selecting link targets")
	acc := NewAccumulator()
	var planned []PlannedLink
	func() {
		_, span := tracer.Start(ctx, "planner.SelectTargets")
		defer span.End()
		planned = SelectTargets(pages, g, acc, run.setProgress)
		span.SetAttributes(attribute.Int("planned_links", len(planned)))
	}()

	byID := make(map[string]datatypes.Page, len(pages))
	for _, pg := range pages {
		byID[pg.ID] = pg
	}

	// Parse each source page's body once; the same document carries the
	// context-fit signal for anchor choice and then receives the injections.
	docs := make(map[string]*inject.Document)
	for _, pl := range planned {
		if _, ok := docs[pl.SourceID]; ok {
			continue
		}
		doc, err := inject.ParseDocument(byID[pl.SourceID].BodyHTML)
		if err != nil {
			return nil, nil, fmt.Errorf("parse page %s: %w", pl.SourceID, err)
		}
		docs[pl.SourceID] = doc
	}

	targetIDs := make(map[string]struct{})
	for _, pl := range planned {
		targetIDs[pl.TargetID] = struct{}{}
	}
	pools := BuildAnchorPools(ctx, pages, targetIDs, p.rewriter, logger)

	// Anchor choice is a sequential fold so the reuse cap and tag shares
	// stay reproducible.
	assignments := make(map[string][]anchorAssignment, len(docs))
	assigned := 0
	for _, pl := range planned {
		cand, ok := ChooseAnchor(pools[pl.TargetID], pl.TargetID, docs[pl.SourceID], acc)
		if !ok {
			if pl.Mandatory {
				return nil, nil, fmt.Errorf("page %s target %s: %w", pl.SourceID, pl.TargetID, ErrMandatoryPlacement)
			}
			logger.Debug("anchor pool exhausted, dropping discretionary link",
				"source", pl.SourceID, "target", pl.TargetID)
			continue
		}
		acc.UseAnchor(pl.TargetID, cand.Text, cand.Tag)
		assignments[pl.SourceID] = append(assignments[pl.SourceID], anchorAssignment{link: pl, anchor: cand})
		assigned++
	}

	run.setState(datatypes.RunInjectingLinks, "injecting links")
	ictx, ispan := tracer.Start(ctx, "planner.Inject", trace.WithAttributes(
		attribute.Int("assignments", assigned),
	))
	defer ispan.End()

	type pageResult struct {
		pageID string
		body   string
		links  []datatypes.Link
	}
	sources := make([]string, 0, len(assignments))
	for _, pg := range pages {
		if len(assignments[pg.ID]) > 0 {
			sources = append(sources, pg.ID)
		}
	}

	results := make([]pageResult, len(sources))
	var done atomic.Int64
	eg, egctx := errgroup.WithContext(ictx)
	eg.SetLimit(p.opts.InjectWorkers)
	for i, sourceID := range sources {
		i, sourceID := i, sourceID
		eg.Go(func() error {
			links, err := p.injectPage(egctx, docs[sourceID], assignments[sourceID], byID, run.scopeKey, run.scope)
			if err != nil {
				return err
			}
			body, err := docs[sourceID].HTML()
			if err != nil {
				return fmt.Errorf("render page %s: %w", sourceID, err)
			}
			results[i] = pageResult{pageID: sourceID, body: body, links: links}
			run.setProgress(int(done.Add(1)), len(sources))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		ispan.RecordError(err)
		return nil, nil, err
	}

	var links []datatypes.Link
	pageHTML := make(map[string]string, len(results))
	for _, r := range results {
		links = append(links, r.links...)
		pageHTML[r.pageID] = r.body
	}
	return links, pageHTML, nil
}

// injectPage places one source page's assigned links. Rule-based placement
// first; the generative fallback rewrites a paragraph when rules cannot
// land the anchor. A failed mandatory placement aborts the whole run; a
// failed discretionary placement just drops that link.
func (p *Planner) injectPage(ctx context.Context, doc *inject.Document, assignments []anchorAssignment, byID map[string]datatypes.Page, scopeKey string, scope datatypes.ScopeType) ([]datatypes.Link, error) {
	logger := p.opts.Logger.With("scope_key", scopeKey)
	now := time.Now().Unix()

	var out []datatypes.Link
	for _, as := range assignments {
		target := byID[as.link.TargetID]
		href := PageHref(target)

		position := 0
		method := datatypes.PlacementRuleBased
		res := doc.TryInject(as.anchor.Text, href, as.link.Mandatory)
		if res.Placed {
			position = res.Position
		} else {
			para := doc.FallbackParagraph(as.link.Mandatory, fallbackTerms(target))
			if para < 0 {
				if as.link.Mandatory {
					return nil, fmt.Errorf("page %s has no usable paragraph: %w", as.link.SourceID, ErrMandatoryPlacement)
				}
				logger.Debug("no fallback paragraph, dropping link",
					"source", as.link.SourceID, "target", as.link.TargetID, "reason", res.Reason)
				continue
			}
			rewritten, err := p.rewriter.RewriteParagraph(ctx, doc.ParagraphText(para), as.anchor.Text, TargetDescription(target))
			if err == nil {
				err = doc.ReplaceParagraph(para, rewritten, as.anchor.Text, href)
			}
			if err != nil {
				if as.link.Mandatory {
					return nil, fmt.Errorf("rewrite for mandatory link on page %s: %w", as.link.SourceID, ErrMandatoryPlacement)
				}
				logger.Warn("fallback rewrite failed, dropping link",
					"source", as.link.SourceID, "target", as.link.TargetID, "error", err)
				continue
			}
			position = para
			method = datatypes.PlacementLLMFallback
		}

		if as.link.Mandatory {
			// Later anchors must not precede the parent link in document
			// order, even inside the same paragraph.
			doc.RequireAfter(href)
		}

		link := datatypes.Link{
			ID:           uuid.NewString(),
			SourcePageID: as.link.SourceID,
			TargetPageID: as.link.TargetID,
			ScopeKey:     scopeKey,
			Scope:        scope,
			AnchorText:   as.anchor.Text,
			AnchorType:   as.anchor.Tag,
			Position:     position,
			IsMandatory:  as.link.Mandatory,
			Method:       method,
			Status:       datatypes.LinkInjected,
			CreatedAt:    now,
		}
		if scope == datatypes.ScopeCluster {
			link.ClusterID = scopeKey
		}
		out = append(out, link)
	}
	return out, nil
}

// PageHref resolves the href a link to the page should carry.
func PageHref(p datatypes.Page) string {
	if p.URL != "" {
		return p.URL
	}
	return "/collections/" + p.ID
}

// fallbackTerms gathers the target keywords used to pick the most relevant
// fallback paragraph.
func fallbackTerms(p datatypes.Page) []string {
	terms := make([]string, 0, 1+len(p.Variations)+len(p.Labels))
	if p.PrimaryKeyword != "" {
		terms = append(terms, p.PrimaryKeyword)
	}
	terms = append(terms, p.Variations...)
	terms = append(terms, p.Labels...)
	return terms
}

func failedRule(status string) (string, bool) {
	const prefix = "failed:"
	if len(status) > len(prefix) && status[:len(prefix)] == prefix {
		return status[len(prefix):], true
	}
	return "", false
}

// meteredRewriter counts rewrite backend calls without the backends having
// to know about metrics.
type meteredRewriter struct {
	rw rewrite.Rewriter
	m  *observability.Metrics
}

func (r *meteredRewriter) RewriteParagraph(ctx context.Context, paragraph, anchorText, targetDescription string) (string, error) {
	out, err := r.rw.RewriteParagraph(ctx, paragraph, anchorText, targetDescription)
	r.m.RewriteCallsTotal.WithLabelValues("paragraph", callStatus(err)).Inc()
	return out, err
}

func (r *meteredRewriter) GenerateNaturalPhrases(ctx context.Context, targetDescription string, n int) ([]string, error) {
	out, err := r.rw.GenerateNaturalPhrases(ctx, targetDescription, n)
	r.m.RewriteCallsTotal.WithLabelValues("phrases", callStatus(err)).Inc()
	return out, err
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
