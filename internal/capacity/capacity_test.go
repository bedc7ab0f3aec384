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

package capacity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sapcc/placement/internal/capacity"
	"github.com/sapcc/placement/internal/db"
)

func TestViewRemainingSubtractsUsage(t *testing.T) {
	v := capacity.BuildView(
		[]db.Inventory{
			{ResourceProviderID: 1, ResourceClassID: 1, Total: 10, AllocationRatio: 1, MinUnit: 1, MaxUnit: 10, StepSize: 1},
		},
		[]capacity.UsageRow{
			{Provider: 1, Class: 1, Used: 4},
		},
	)

	assert.True(t, v.HasInventory(1, 1))
	assert.False(t, v.HasInventory(1, 2))
	assert.Equal(t, int64(4), v.Used(1, 1))
	assert.Equal(t, int64(6), v.Remaining(1, 1))
}

func TestViewRemainingClampsAtZero(t *testing.T) {
	v := capacity.BuildView(
		[]db.Inventory{
			{ResourceProviderID: 1, ResourceClassID: 1, Total: 10, AllocationRatio: 1, MinUnit: 1, MaxUnit: 10, StepSize: 1},
		},
		[]capacity.UsageRow{
			{Provider: 1, Class: 1, Used: 15},
		},
	)
	assert.Equal(t, int64(0), v.Remaining(1, 1))
}

func TestCanAllocateHonorsStepAndMinMax(t *testing.T) {
	v := capacity.BuildView(
		[]db.Inventory{
			{ResourceProviderID: 1, ResourceClassID: 1, Total: 100, AllocationRatio: 1, MinUnit: 2, MaxUnit: 8, StepSize: 2},
		},
		nil,
	)

	assert.True(t, v.CanAllocate(1, 1, 4))
	assert.False(t, v.CanAllocate(1, 1, 1))  // below min_unit
	assert.False(t, v.CanAllocate(1, 1, 10)) // above max_unit
	assert.False(t, v.CanAllocate(1, 1, 3))  // not a multiple of step_size
}

func TestCanAllocateFalseWithoutInventoryRow(t *testing.T) {
	v := capacity.BuildView(nil, nil)
	assert.False(t, v.CanAllocate(1, 1, 1))
}

func TestCanAllocateRespectsAllocationRatio(t *testing.T) {
	v := capacity.BuildView(
		[]db.Inventory{
			{ResourceProviderID: 1, ResourceClassID: 1, Total: 10, AllocationRatio: 1.5, MinUnit: 1, MaxUnit: 100, StepSize: 1, Reserved: 2},
		},
		nil,
	)
	// floor(10*1.5) - 2 = 13
	assert.True(t, v.CanAllocate(1, 1, 13))
	assert.False(t, v.CanAllocate(1, 1, 14))
}
