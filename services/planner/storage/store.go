// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

// Key prefixes. Scope-keyed records nest the scope key so scope scans are a
// single prefix iteration.
const (
	prefixPage     = "page/"      // page/<pageID>
	prefixPageIdx  = "pagescope/" // pagescope/<scopeKey>/<pageID>
	prefixLink     = "link/"      // link/<scopeKey>/<linkID>
	prefixLinkIdx  = "linkidx/"   // linkidx/<linkID> -> scopeKey
	prefixSnapshot = "snapshot/"  // snapshot/<scopeKey>/<snapshotID>
	prefixMarker   = "marker/"    // marker/<scopeKey>
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the planner's persistence layer over one BadgerDB instance.
// All methods are safe for concurrent use.
type Store struct {
	db       *badger.DB
	gcCancel context.CancelFunc
}

// Close stops background GC and closes the database.
func (s *Store) Close() error {
	if s.gcCancel != nil {
		s.gcCancel()
	}
	return s.db.Close()
}

func putJSON(txn *badger.Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), raw)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return item.Value(func(raw []byte) error {
		return json.Unmarshal(raw, v)
	})
}

// scanJSON iterates every value under prefix, decoding into fresh T values.
func scanJSON[T any](txn *badger.Txn, prefix string) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []T
	for it.Rewind(); it.Valid(); it.Next() {
		var v T
		err := it.Item().Value(func(raw []byte) error {
			return json.Unmarshal(raw, &v)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// =============================================================================
// Pages
// =============================================================================

// UpsertPages writes collaborator-fed page records and their scope index.
func (s *Store) UpsertPages(pages []datatypes.Page) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, p := range pages {
			if p.ID == "" || p.ScopeKey == "" {
				return fmt.Errorf("page requires id and scope_key")
			}
			if err := putJSON(txn, prefixPage+p.ID, p); err != nil {
				return err
			}
			if err := txn.Set([]byte(prefixPageIdx+p.ScopeKey+"/"+p.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPage fetches one page by ID.
func (s *Store) GetPage(id string) (datatypes.Page, error) {
	var p datatypes.Page
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixPage+id, &p)
	})
	return p, err
}

// PagesByScope lists a scope's pages in ascending ID order.
func (s *Store) PagesByScope(scopeKey string) ([]datatypes.Page, error) {
	var pages []datatypes.Page
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPageIdx + scopeKey + "/")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			pageID := key[len(prefixPageIdx+scopeKey+"/"):]
			var p datatypes.Page
			if err := getJSON(txn, prefixPage+pageID, &p); err != nil {
				return err
			}
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })
	return pages, nil
}

// UpdatePageHTML replaces one page's body content.
func (s *Store) UpdatePageHTML(id, bodyHTML string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var p datatypes.Page
		if err := getJSON(txn, prefixPage+id, &p); err != nil {
			return err
		}
		p.BodyHTML = bodyHTML
		return putJSON(txn, prefixPage+id, p)
	})
}

// =============================================================================
// Links
// =============================================================================

// PutLink writes a single link record (manual edits; plan commits go
// through CommitPlan).
func (s *Store) PutLink(link datatypes.Link) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putLink(txn, link)
	})
}

func putLink(txn *badger.Txn, link datatypes.Link) error {
	if link.ID == "" || link.ScopeKey == "" {
		return fmt.Errorf("link requires id and scope_key")
	}
	if err := putJSON(txn, prefixLink+link.ScopeKey+"/"+link.ID, link); err != nil {
		return err
	}
	return txn.Set([]byte(prefixLinkIdx+link.ID), []byte(link.ScopeKey))
}

// GetLink fetches a link by ID via the scope index.
func (s *Store) GetLink(id string) (datatypes.Link, error) {
	var link datatypes.Link
	err := s.db.View(func(txn *badger.Txn) error {
		scopeKey, err := linkScope(txn, id)
		if err != nil {
			return err
		}
		return getJSON(txn, prefixLink+scopeKey+"/"+id, &link)
	})
	return link, err
}

func linkScope(txn *badger.Txn, id string) (string, error) {
	item, err := txn.Get([]byte(prefixLinkIdx + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	var scopeKey string
	err = item.Value(func(raw []byte) error {
		scopeKey = string(raw)
		return nil
	})
	return scopeKey, err
}

// LinksByScope lists a scope's links ordered by (source page, position).
func (s *Store) LinksByScope(scopeKey string) ([]datatypes.Link, error) {
	var links []datatypes.Link
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		links, err = scanJSON[datatypes.Link](txn, prefixLink+scopeKey+"/")
		return err
	})
	if err != nil {
		return nil, err
	}
	sortLinks(links)
	return links, nil
}

func sortLinks(links []datatypes.Link) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].SourcePageID != links[j].SourcePageID {
			return links[i].SourcePageID < links[j].SourcePageID
		}
		if links[i].Position != links[j].Position {
			return links[i].Position < links[j].Position
		}
		return links[i].ID < links[j].ID
	})
}

// DeleteLink removes one link record and its index entry.
func (s *Store) DeleteLink(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		scopeKey, err := linkScope(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete([]byte(prefixLink + scopeKey + "/" + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixLinkIdx + id))
	})
}

// DeleteScopeLinks removes every link in a scope. Returns the count deleted.
func (s *Store) DeleteScopeLinks(scopeKey string) (int, error) {
	links, err := s.LinksByScope(scopeKey)
	if err != nil {
		return 0, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, l := range links {
			if err := txn.Delete([]byte(prefixLink + scopeKey + "/" + l.ID)); err != nil {
				return err
			}
			if err := txn.Delete([]byte(prefixLinkIdx + l.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(links), nil
}

// =============================================================================
// Snapshots and re-plan markers
// =============================================================================

// PutSnapshot stores an immutable plan snapshot.
func (s *Store) PutSnapshot(snap datatypes.PlanSnapshot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, prefixSnapshot+snap.ScopeKey+"/"+snap.ID, snap)
	})
}

// SnapshotsByScope lists snapshots newest first.
func (s *Store) SnapshotsByScope(scopeKey string) ([]datatypes.PlanSnapshot, error) {
	var snaps []datatypes.PlanSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		snaps, err = scanJSON[datatypes.PlanSnapshot](txn, prefixSnapshot+scopeKey+"/")
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt > snaps[j].CreatedAt })
	return snaps, nil
}

// PutMarker writes the scope's re-plan commit marker.
func (s *Store) PutMarker(m datatypes.ReplanMarker) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, prefixMarker+m.ScopeKey, m)
	})
}

// GetMarker reads the scope's re-plan commit marker.
func (s *Store) GetMarker(scopeKey string) (datatypes.ReplanMarker, error) {
	var m datatypes.ReplanMarker
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixMarker+scopeKey, &m)
	})
	return m, err
}

// DeleteMarker clears the scope's re-plan commit marker.
func (s *Store) DeleteMarker(scopeKey string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixMarker + scopeKey))
	})
}

// =============================================================================
// Plan commit
// =============================================================================

// CommitPlan atomically writes a validated plan: every link record plus the
// mutated page HTML, in one transaction. Nothing is visible until the whole
// scope commits; a failed run therefore leaves zero new links and zero
// content changes. When marker is non-nil its phase advance rides the same
// transaction (re-plan rebuilt marker).
func (s *Store) CommitPlan(scopeKey string, links []datatypes.Link, pageHTML map[string]string, marker *datatypes.ReplanMarker) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, link := range links {
			if link.ScopeKey != scopeKey {
				return fmt.Errorf("link %s belongs to scope %s, not %s", link.ID, link.ScopeKey, scopeKey)
			}
			if err := putLink(txn, link); err != nil {
				return err
			}
		}
		for pageID, body := range pageHTML {
			var p datatypes.Page
			if err := getJSON(txn, prefixPage+pageID, &p); err != nil {
				return err
			}
			p.BodyHTML = body
			if err := putJSON(txn, prefixPage+pageID, p); err != nil {
				return err
			}
		}
		if marker != nil {
			return putJSON(txn, prefixMarker+marker.ScopeKey, *marker)
		}
		return nil
	})
}
