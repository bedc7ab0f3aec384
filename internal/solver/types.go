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

// Package solver implements the allocation-candidate algorithm: the group
// matcher (§4.D), tree locality resolver (§4.E), and candidate combiner
// (§4.F). It is pure and CPU-bound; everything it needs is handed in as an
// already-built Snapshot/View, and it performs no store I/O of its own
// (§5: "the combiner runs to completion without yielding").
package solver

import (
	"sort"

	"github.com/sapcc/placement/internal/db"
	"github.com/sapcc/placement/internal/index"
)

// ResourceGroup is one clause of a candidate request (§6, GLOSSARY
// "Resource group"). Suffix is "" for the unsuffixed group.
type ResourceGroup struct {
	Suffix     string
	Resources  map[string]int64 // resource class name -> requested amount
	Traits     index.TraitFilter
	Aggregates index.AggregateFilter
}

// IsResourceless reports whether g has no quantitative demand (§4.D,
// GLOSSARY "Resourceless group").
func (g ResourceGroup) IsResourceless() bool {
	return len(g.Resources) == 0
}

// ResourceAssignment is one `rc -> (rp, amount)` leg of a GroupMatch.
type ResourceAssignment struct {
	ClassName string
	Class     db.ResourceClassID
	Provider  db.ResourceProviderID
	Amount    int64
}

// GroupMatch is one way of satisfying a single ResourceGroup (§4.D). A
// resourceless match carries no Assignments; its sole provider is
// AnchorProvider.
type GroupMatch struct {
	Assignments    []ResourceAssignment
	Resourceless   bool
	AnchorProvider db.ResourceProviderID
}

// Providers returns the distinct set of RPs used by this match, in ascending
// ID order.
func (m GroupMatch) Providers() []db.ResourceProviderID {
	if m.Resourceless {
		return []db.ResourceProviderID{m.AnchorProvider}
	}
	seen := make(map[db.ResourceProviderID]bool, len(m.Assignments))
	var out []db.ResourceProviderID
	for _, a := range m.Assignments {
		if !seen[a.Provider] {
			seen[a.Provider] = true
			out = append(out, a.Provider)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Request is a fully-parsed candidate request (§6).
type Request struct {
	Groups []ResourceGroup
	// SameSubtree lists independent locality clauses; each entry is the set
	// of suffixes (non-empty) whose RPs must share a common ancestor.
	SameSubtree [][]string
	// GroupPolicy is "none" or "isolate" (§4.F). Defaults to "none".
	GroupPolicy string
	// Limit caps the number of emitted AllocationRequests; 0 means no cap.
	// The server default is filled in by query.Parse, not here.
	Limit int
}

const (
	GroupPolicyNone    = "none"
	GroupPolicyIsolate = "isolate"
)

// AllocationRequest is one emitted candidate (§4.F step 4, §6 response body).
type AllocationRequest struct {
	// Allocations is keyed by provider, then by resource class name, summed
	// across every group that assigned units to that (provider, class).
	Allocations map[db.ResourceProviderID]map[string]int64
	// Mappings records which RPs each group (by suffix) selected, preserving
	// order and duplicates across groups.
	Mappings map[string][]db.ResourceProviderID
}
