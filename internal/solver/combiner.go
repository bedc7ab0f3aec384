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
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sapcc/placement/internal/core"
	"github.com/sapcc/placement/internal/db"
)

// ValidateRequest checks the structural rules from §4.F that do not depend on
// any store lookup, before any matching work is done.
func ValidateRequest(req Request) error {
	suffixes := make(map[string]ResourceGroup, len(req.Groups))
	anyResources := false
	for _, g := range req.Groups {
		suffixes[g.Suffix] = g
		if !g.IsResourceless() {
			anyResources = true
		}
	}
	if !anyResources {
		return core.BadRequest(core.CodeQueryBadValue, "no group in the request declares any resources")
	}

	referenced := make(map[string]bool)
	for _, clause := range req.SameSubtree {
		for _, suffix := range clause {
			if suffix == "" {
				return core.BadRequest(core.CodeQueryBadValue, "same_subtree may not reference the unsuffixed group")
			}
			if _, ok := suffixes[suffix]; !ok {
				return core.BadRequest(core.CodeQueryBadValue, fmt.Sprintf("same_subtree references unknown group suffix %q", suffix))
			}
			referenced[suffix] = true
		}
	}

	for _, g := range req.Groups {
		if g.Suffix == "" || !g.IsResourceless() {
			continue
		}
		hasAggregateClause := len(g.Aggregates.AnyOf) > 0
		if !referenced[g.Suffix] && !hasAggregateClause {
			return core.BadRequest(core.CodeQueryBadValue,
				fmt.Sprintf("resourceless group %q is never anchored: it must appear in same_subtree or carry member_of", g.Suffix))
		}
	}
	return nil
}

// Combine implements the candidate combiner (§4.F): given every group's match
// sequence, it produces the deduplicated, limit-capped list of
// AllocationRequests. ctx is checked between combinations so that a caller's
// deadline aborts enumeration with Timeout (§5, §7).
func Combine(ctx context.Context, req Request, tree *Tree, matchesBySuffix map[string][]GroupMatch) ([]AllocationRequest, error) {
	policy := req.GroupPolicy
	if policy == "" {
		policy = GroupPolicyNone
	}

	resourcefulRoots := make(map[db.ResourceProviderID]bool)
	firstResourceful := true
	for _, g := range req.Groups {
		if g.IsResourceless() {
			continue
		}
		roots := make(map[db.ResourceProviderID]bool)
		for _, m := range matchesBySuffix[g.Suffix] {
			root, ok := matchRoot(tree, m)
			if ok {
				roots[root] = true
			}
		}
		if firstResourceful {
			for r := range roots {
				resourcefulRoots[r] = true
			}
			firstResourceful = false
		} else {
			resourcefulRoots = intersect(resourcefulRoots, roots)
		}
	}

	var out []AllocationRequest
	seen := make(map[string]bool)
	limit := req.Limit

	for root := range resourcefulRoots {
		if limit > 0 && len(out) >= limit {
			break
		}
		perGroupMatches := make([][]GroupMatch, len(req.Groups))
		for i, g := range req.Groups {
			if g.IsResourceless() {
				perGroupMatches[i] = matchesBySuffix[g.Suffix]
				continue
			}
			var filtered []GroupMatch
			for _, m := range matchesBySuffix[g.Suffix] {
				if r, ok := matchRoot(tree, m); ok && r == root {
					filtered = append(filtered, m)
				}
			}
			perGroupMatches[i] = filtered
		}

		err := enumerateCombinations(ctx, req.Groups, perGroupMatches, nil, func(combo []GroupMatch) error {
			ok, err := accept(tree, req.Groups, combo, policy, req.SameSubtree)
			if err != nil || !ok {
				return err
			}
			candidate := buildAllocationRequest(req.Groups, combo)
			key := candidateKey(candidate)
			if seen[key] {
				return nil
			}
			seen[key] = true
			out = append(out, candidate)
			if limit > 0 && len(out) >= limit {
				return errLimitReached
			}
			return nil
		})
		if err != nil && err != errLimitReached {
			return nil, err
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return candidateKey(out[i]) < candidateKey(out[j]) })
	return out, nil
}

var errLimitReached = fmt.Errorf("limit reached")

func matchRoot(tree *Tree, m GroupMatch) (db.ResourceProviderID, bool) {
	providers := m.Providers()
	if len(providers) == 0 {
		return 0, false
	}
	root := tree.RootOf(providers[0])
	for _, p := range providers[1:] {
		if tree.RootOf(p) != root {
			return 0, false
		}
	}
	return root, true
}

func enumerateCombinations(ctx context.Context, groups []ResourceGroup, perGroup [][]GroupMatch, chosen []GroupMatch, yield func([]GroupMatch) error) error {
	if err := ctx.Err(); err != nil {
		return core.Timeout("allocation candidate enumeration exceeded its deadline")
	}
	idx := len(chosen)
	if idx == len(perGroup) {
		return yield(chosen)
	}
	for _, m := range perGroup[idx] {
		err := enumerateCombinations(ctx, groups, perGroup, append(chosen, m), yield)
		if err != nil {
			return err
		}
	}
	return nil
}

func accept(tree *Tree, groups []ResourceGroup, combo []GroupMatch, policy string, sameSubtreeClauses [][]string) (bool, error) {
	if policy == GroupPolicyIsolate {
		for i := range groups {
			if groups[i].IsResourceless() {
				continue
			}
			for j := i + 1; j < len(groups); j++ {
				if groups[j].IsResourceless() {
					continue
				}
				if sharesProvider(combo[i], combo[j]) {
					return false, nil
				}
			}
		}
	}

	suffixIndex := make(map[string]int, len(groups))
	for i, g := range groups {
		suffixIndex[g.Suffix] = i
	}
	for _, clause := range sameSubtreeClauses {
		var union []db.ResourceProviderID
		for _, suffix := range clause {
			union = append(union, combo[suffixIndex[suffix]].Providers()...)
		}
		if !tree.SameSubtree(union) {
			return false, nil
		}
	}
	return true, nil
}

func sharesProvider(a, b GroupMatch) bool {
	set := toSet(a.Providers())
	for _, p := range b.Providers() {
		if set[p] {
			return true
		}
	}
	return false
}

func buildAllocationRequest(groups []ResourceGroup, combo []GroupMatch) AllocationRequest {
	allocations := make(map[db.ResourceProviderID]map[string]int64)
	mappings := make(map[string][]db.ResourceProviderID)

	for i, g := range groups {
		m := combo[i]
		mappings[g.Suffix] = m.Providers()
		for _, a := range m.Assignments {
			if allocations[a.Provider] == nil {
				allocations[a.Provider] = make(map[string]int64)
			}
			allocations[a.Provider][a.ClassName] += a.Amount
		}
	}
	return AllocationRequest{Allocations: allocations, Mappings: mappings}
}

// candidateKey renders an AllocationRequest into a canonical string so that
// equal (allocations, mappings) tuples compare equal regardless of map
// iteration order (§4.F step 5).
func candidateKey(c AllocationRequest) string {
	var b strings.Builder

	providerIDs := make([]db.ResourceProviderID, 0, len(c.Allocations))
	for p := range c.Allocations {
		providerIDs = append(providerIDs, p)
	}
	sort.Slice(providerIDs, func(i, j int) bool { return providerIDs[i] < providerIDs[j] })
	for _, p := range providerIDs {
		classes := c.Allocations[p]
		names := make([]string, 0, len(classes))
		for name := range classes {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "rp%d{", p)
		for _, name := range names {
			fmt.Fprintf(&b, "%s=%d,", name, classes[name])
		}
		b.WriteString("}|")
	}

	suffixes := make([]string, 0, len(c.Mappings))
	for s := range c.Mappings {
		suffixes = append(suffixes, s)
	}
	sort.Strings(suffixes)
	for _, s := range suffixes {
		fmt.Fprintf(&b, "map[%s]=", s)
		for _, p := range c.Mappings[s] {
			fmt.Fprintf(&b, "%d,", p)
		}
		b.WriteString("|")
	}
	return b.String()
}
