/******************************************************************************
*
*  Copyright 2024 SAP SE
*
*  Licensed under the Apache License, Version 2.0 (the "License");
*  you may not use this file except in compliance with the License.
*  You may obtain a copy of the License at
*
*      http://www.apache.org/licenses/LICENSE-2.0
*
*  Unless required by applicable law or agreed to in writing, software
*  distributed under the License is distributed on an "AS IS" BASIS,
*  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
*  See the License for the specific language governing permissions and
*  limitations under the License.
*
******************************************************************************/

package solver

import (
	"github.com/sapcc/placement/internal/db"
)

// Tree is the tree-as-arena locality resolver (§4.E, §9 "Tree as arena +
// indices"): providers are held in maps keyed by ID with parent/root links, and
// ancestor chains are materialized lazily and cached for the lifetime of one
// request.
type Tree struct {
	parent    map[db.ResourceProviderID]*db.ResourceProviderID
	root      map[db.ResourceProviderID]db.ResourceProviderID
	uuid      map[db.ResourceProviderID]string
	ancestors map[db.ResourceProviderID][]db.ResourceProviderID
}

// NewTree builds a Tree from the full set of resource providers known to the
// store. Building it is O(n); every lookup thereafter is O(depth) or better.
func NewTree(providers []db.ResourceProvider) *Tree {
	t := &Tree{
		parent:    make(map[db.ResourceProviderID]*db.ResourceProviderID, len(providers)),
		root:      make(map[db.ResourceProviderID]db.ResourceProviderID, len(providers)),
		uuid:      make(map[db.ResourceProviderID]string, len(providers)),
		ancestors: make(map[db.ResourceProviderID][]db.ResourceProviderID, len(providers)),
	}
	for _, rp := range providers {
		t.parent[rp.ID] = rp.ParentID
		t.root[rp.ID] = rp.RootID
		t.uuid[rp.ID] = rp.UUID
	}
	return t
}

// UUID returns the UUID of a provider known to the tree.
func (t *Tree) UUID(id db.ResourceProviderID) string {
	return t.uuid[id]
}

// RootOf returns the root of id's tree (§4.E "root_of").
func (t *Tree) RootOf(id db.ResourceProviderID) db.ResourceProviderID {
	return t.root[id]
}

// AncestorsInclusive returns id's ancestor chain from id up to its root,
// inclusive of both ends, computing and caching it on first use.
func (t *Tree) AncestorsInclusive(id db.ResourceProviderID) []db.ResourceProviderID {
	if cached, ok := t.ancestors[id]; ok {
		return cached
	}
	var chain []db.ResourceProviderID
	for cursor := id; ; {
		chain = append(chain, cursor)
		parent := t.parent[cursor]
		if parent == nil {
			break
		}
		cursor = *parent
	}
	t.ancestors[id] = chain
	return chain
}

// IsInSubtree reports whether rp == anchor or anchor is an ancestor of rp
// (§4.E "is_in_subtree").
func (t *Tree) IsInSubtree(rp, anchor db.ResourceProviderID) bool {
	for _, a := range t.AncestorsInclusive(rp) {
		if a == anchor {
			return true
		}
	}
	return false
}

// SameSubtree reports whether the given set of RPs admits a common ancestor
// (§4.E, GLOSSARY "Same subtree"): there exists some `a` such that every rp
// in the set is in_subtree of `a`. An empty or singleton set is trivially
// true.
func (t *Tree) SameSubtree(rps []db.ResourceProviderID) bool {
	if len(rps) <= 1 {
		return true
	}
	candidates := toSet(t.AncestorsInclusive(rps[0]))
	for _, rp := range rps[1:] {
		candidates = intersect(candidates, toSet(t.AncestorsInclusive(rp)))
		if len(candidates) == 0 {
			return false
		}
	}
	return len(candidates) > 0
}

func toSet(ids []db.ResourceProviderID) map[db.ResourceProviderID]bool {
	s := make(map[db.ResourceProviderID]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func intersect(a, b map[db.ResourceProviderID]bool) map[db.ResourceProviderID]bool {
	out := make(map[db.ResourceProviderID]bool)
	for id := range a {
		if b[id] {
			out[id] = true
		}
	}
	return out
}
