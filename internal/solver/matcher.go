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
	"sort"

	"github.com/sapcc/placement/internal/capacity"
	"github.com/sapcc/placement/internal/db"
	"github.com/sapcc/placement/internal/index"
)

// ClassCatalog resolves resource class names (as they appear in a query) to
// the store's internal IDs.
type ClassCatalog map[string]db.ResourceClassID

// providerByUUID is the sorted universe of RPs the matcher enumerates over
// (§4.D "RPs in ascending uuid").
type providerByUUID []db.ResourceProvider

func sortedProviders(providers []db.ResourceProvider) providerByUUID {
	out := make(providerByUUID, len(providers))
	copy(out, providers)
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

// MatchGroup enumerates every GroupMatch for one ResourceGroup (§4.D). For a
// resourceful group, resource classes are considered in lexicographic order,
// and the result is the Cartesian product of each class's ordered candidate
// list, since different classes may be drawn from different RPs. For a
// resourceless group, every RP satisfying the trait/aggregate filters is its
// own one-RP match.
func MatchGroup(group ResourceGroup, providers []db.ResourceProvider, classes ClassCatalog, capView *capacity.View, idx *index.Snapshot) []GroupMatch {
	universe := sortedProviders(providers)

	if group.IsResourceless() {
		var matches []GroupMatch
		for _, rp := range universe {
			if matchesFilters(group, idx, rp.ID) {
				matches = append(matches, GroupMatch{Resourceless: true, AnchorProvider: rp.ID})
			}
		}
		return matches
	}

	names := make([]string, 0, len(group.Resources))
	for name := range group.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	perClassCandidates := make([][]ResourceAssignment, 0, len(names))
	for _, name := range names {
		amount := group.Resources[name]
		classID, ok := classes[name]
		if !ok {
			return nil // unknown resource class: nobody can supply it
		}
		var candidates []ResourceAssignment
		for _, rp := range universe {
			if !capView.CanAllocate(rp.ID, classID, amount) {
				continue
			}
			if !matchesFilters(group, idx, rp.ID) {
				continue
			}
			candidates = append(candidates, ResourceAssignment{
				ClassName: name,
				Class:     classID,
				Provider:  rp.ID,
				Amount:    amount,
			})
		}
		if len(candidates) == 0 {
			return nil // this class has no supplier; no combination can work
		}
		perClassCandidates = append(perClassCandidates, candidates)
	}

	var matches []GroupMatch
	cartesianProduct(perClassCandidates, nil, &matches)
	return matches
}

func matchesFilters(group ResourceGroup, idx *index.Snapshot, provider db.ResourceProviderID) bool {
	return group.Traits.Matches(idx, provider) && group.Aggregates.Matches(idx, provider)
}

func cartesianProduct(remaining [][]ResourceAssignment, chosen []ResourceAssignment, out *[]GroupMatch) {
	if len(remaining) == 0 {
		assignments := make([]ResourceAssignment, len(chosen))
		copy(assignments, chosen)
		*out = append(*out, GroupMatch{Assignments: assignments})
		return
	}
	for _, candidate := range remaining[0] {
		cartesianProduct(remaining[1:], append(chosen, candidate), out)
	}
}
