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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sapcc/placement/internal/capacity"
	"github.com/sapcc/placement/internal/db"
	"github.com/sapcc/placement/internal/index"
)

func testProviders() []db.ResourceProvider {
	return []db.ResourceProvider{
		{ID: 1, UUID: "uuid-a", Name: "a"},
		{ID: 2, UUID: "uuid-b", Name: "b"},
	}
}

func testCapView() *capacity.View {
	return capacity.BuildView([]db.Inventory{
		{ResourceProviderID: 1, ResourceClassID: 1, Total: 10, AllocationRatio: 1, MinUnit: 1, MaxUnit: 10, StepSize: 1},
		{ResourceProviderID: 2, ResourceClassID: 1, Total: 10, AllocationRatio: 1, MinUnit: 1, MaxUnit: 10, StepSize: 1},
	}, nil)
}

func TestMatchGroupResourcefulEnumeratesAllSuppliers(t *testing.T) {
	group := ResourceGroup{Resources: map[string]int64{"VCPU": 4}}
	classes := ClassCatalog{"VCPU": 1}

	matches := MatchGroup(group, testProviders(), classes, testCapView(), index.BuildSnapshot(nil, nil))

	assert.Len(t, matches, 2)
	for _, m := range matches {
		assert.False(t, m.Resourceless)
		assert.Len(t, m.Assignments, 1)
	}
}

func TestMatchGroupResourcefulFiltersByCapacity(t *testing.T) {
	group := ResourceGroup{Resources: map[string]int64{"VCPU": 20}}
	classes := ClassCatalog{"VCPU": 1}

	matches := MatchGroup(group, testProviders(), classes, testCapView(), index.BuildSnapshot(nil, nil))
	assert.Empty(t, matches)
}

func TestMatchGroupUnknownClassReturnsNil(t *testing.T) {
	group := ResourceGroup{Resources: map[string]int64{"UNKNOWN": 1}}
	matches := MatchGroup(group, testProviders(), ClassCatalog{}, testCapView(), index.BuildSnapshot(nil, nil))
	assert.Nil(t, matches)
}

func TestMatchGroupResourcelessOneMatchPerProvider(t *testing.T) {
	group := ResourceGroup{Suffix: "_AZ"}
	matches := MatchGroup(group, testProviders(), ClassCatalog{}, testCapView(), index.BuildSnapshot(nil, nil))

	assert.Len(t, matches, 2)
	for _, m := range matches {
		assert.True(t, m.Resourceless)
		assert.Empty(t, m.Assignments)
	}
}

func TestMatchGroupResourcelessHonorsTraitFilter(t *testing.T) {
	idx := index.BuildSnapshot([]index.TraitRow{
		{ProviderID: 1, TraitName: "CUSTOM_GOLD"},
	}, nil)
	group := ResourceGroup{Suffix: "_AZ", Traits: index.TraitFilter{Required: []string{"CUSTOM_GOLD"}}}

	matches := MatchGroup(group, testProviders(), ClassCatalog{}, testCapView(), idx)
	if assert.Len(t, matches, 1) {
		assert.Equal(t, db.ResourceProviderID(1), matches[0].AnchorProvider)
	}
}

func TestMatchGroupCartesianProductAcrossClasses(t *testing.T) {
	group := ResourceGroup{Resources: map[string]int64{"VCPU": 4, "MEMORY_MB": 4}}
	classes := ClassCatalog{"VCPU": 1, "MEMORY_MB": 2}
	capView := capacity.BuildView([]db.Inventory{
		{ResourceProviderID: 1, ResourceClassID: 1, Total: 10, AllocationRatio: 1, MinUnit: 1, MaxUnit: 10, StepSize: 1},
		{ResourceProviderID: 2, ResourceClassID: 1, Total: 10, AllocationRatio: 1, MinUnit: 1, MaxUnit: 10, StepSize: 1},
		{ResourceProviderID: 1, ResourceClassID: 2, Total: 10, AllocationRatio: 1, MinUnit: 1, MaxUnit: 10, StepSize: 1},
		{ResourceProviderID: 2, ResourceClassID: 2, Total: 10, AllocationRatio: 1, MinUnit: 1, MaxUnit: 10, StepSize: 1},
	}, nil)

	matches := MatchGroup(group, testProviders(), classes, capView, index.BuildSnapshot(nil, nil))
	// 2 candidates for VCPU x 2 candidates for MEMORY_MB = 4 combinations
	assert.Len(t, matches, 4)
}

func TestGroupMatchProvidersSortedAndDeduplicated(t *testing.T) {
	m := GroupMatch{Assignments: []ResourceAssignment{
		{Provider: 2}, {Provider: 1}, {Provider: 2},
	}}
	assert.Equal(t, []db.ResourceProviderID{1, 2}, m.Providers())
}
