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

// Package index builds the per-request trait and aggregate membership
// snapshot (spec §4.B) and evaluates the small algebraic filter tree ("AND of
// ORs") that the query language compiles down to. It does no I/O of its own:
// a Snapshot is built once per candidate request from rows the caller already
// read, and then queried many times as the solver walks providers.
package index

import (
	"sort"

	"github.com/sapcc/placement/internal/db"
)

// Snapshot is an in-memory view of which traits and aggregates every
// resource provider carries, indexed both ways for O(1) membership tests.
type Snapshot struct {
	traitsOf      map[db.ResourceProviderID]map[string]bool
	aggregatesOf  map[db.ResourceProviderID]map[string]bool
	providersWith map[string][]db.ResourceProviderID // trait or aggregate UUID -> providers
}

// BuildSnapshot assembles a Snapshot from the full set of trait and aggregate
// membership rows. Callers typically load these with a single join query per
// kind and pass the joined (providerID, name) pairs straight through.
func BuildSnapshot(traitRows []TraitRow, aggregateRows []AggregateRow) *Snapshot {
	s := &Snapshot{
		traitsOf:      make(map[db.ResourceProviderID]map[string]bool),
		aggregatesOf:  make(map[db.ResourceProviderID]map[string]bool),
		providersWith: make(map[string][]db.ResourceProviderID),
	}
	for _, row := range traitRows {
		if s.traitsOf[row.ProviderID] == nil {
			s.traitsOf[row.ProviderID] = make(map[string]bool)
		}
		s.traitsOf[row.ProviderID][row.TraitName] = true
		s.providersWith[traitKey(row.TraitName)] = append(s.providersWith[traitKey(row.TraitName)], row.ProviderID)
	}
	for _, row := range aggregateRows {
		if s.aggregatesOf[row.ProviderID] == nil {
			s.aggregatesOf[row.ProviderID] = make(map[string]bool)
		}
		s.aggregatesOf[row.ProviderID][row.AggregateUUID] = true
		s.providersWith[aggregateKey(row.AggregateUUID)] = append(s.providersWith[aggregateKey(row.AggregateUUID)], row.ProviderID)
	}
	return s
}

// TraitRow is one (provider, trait) membership pair as loaded from the
// resource_provider_traits/traits join.
type TraitRow struct {
	ProviderID db.ResourceProviderID `db:"provider_id"`
	TraitName  string                `db:"trait_name"`
}

// AggregateRow is one (provider, aggregate) membership pair as loaded from
// the resource_provider_aggregates/aggregates join.
type AggregateRow struct {
	ProviderID    db.ResourceProviderID `db:"provider_id"`
	AggregateUUID string                `db:"aggregate_uuid"`
}

func traitKey(name string) string     { return "trait:" + name }
func aggregateKey(uuid string) string { return "aggregate:" + uuid }

// HasTrait reports whether provider carries trait name.
func (s *Snapshot) HasTrait(provider db.ResourceProviderID, name string) bool {
	return s.traitsOf[provider][name]
}

// HasAggregate reports whether provider is a member of aggregate uuid.
func (s *Snapshot) HasAggregate(provider db.ResourceProviderID, uuid string) bool {
	return s.aggregatesOf[provider][uuid]
}

// TraitsOf returns provider's traits in sorted order, for display purposes
// (spec §6 response body's `provider_summaries[].traits`).
func (s *Snapshot) TraitsOf(provider db.ResourceProviderID) []string {
	names := make([]string, 0, len(s.traitsOf[provider]))
	for name := range s.traitsOf[provider] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TraitFilter is the compiled form of one resource group's trait clauses
// (spec §6): `required` and `in:`-joined any-of groups are ANDed together;
// `forbidden` traits must all be absent.
type TraitFilter struct {
	Required  []string
	Forbidden []string
	AnyOf     [][]string // AND of OR: each inner slice is one `in:a,b` clause
}

// Matches reports whether provider satisfies f.
func (f TraitFilter) Matches(s *Snapshot, provider db.ResourceProviderID) bool {
	for _, name := range f.Required {
		if !s.HasTrait(provider, name) {
			return false
		}
	}
	for _, name := range f.Forbidden {
		if s.HasTrait(provider, name) {
			return false
		}
	}
	for _, group := range f.AnyOf {
		if !anyMatch(group, func(name string) bool { return s.HasTrait(provider, name) }) {
			return false
		}
	}
	return true
}

// AggregateFilter is the compiled form of one resource group's `member_of`
// clauses: an AND of ORs over aggregate UUIDs, same shape as TraitFilter's
// AnyOf but with no required/forbidden counterpart (spec §6).
type AggregateFilter struct {
	AnyOf [][]string
}

// Matches reports whether provider satisfies f.
func (f AggregateFilter) Matches(s *Snapshot, provider db.ResourceProviderID) bool {
	for _, group := range f.AnyOf {
		if !anyMatch(group, func(uuid string) bool { return s.HasAggregate(provider, uuid) }) {
			return false
		}
	}
	return true
}

func anyMatch(candidates []string, test func(string) bool) bool {
	for _, c := range candidates {
		if test(c) {
			return true
		}
	}
	return false
}
