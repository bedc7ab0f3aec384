/*******************************************************************************
*
* Copyright 2024 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sapcc/placement/internal/db"
	"github.com/sapcc/placement/internal/test"
)

func TestSetTraitsAddsAndRemoves(t *testing.T) {
	s := test.NewSetup(t)
	rp := test.NewProvider(t, s.DB, "uuid-for-rp", "rp", nil)

	err := db.SetTraits(s.DB, &rp, []string{"HW_CPU_X86_AVX2", "CUSTOM_GOLD"})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, int64(1), rp.Generation)

	var rows []db.ResourceProviderTrait
	_, err = s.DB.Select(&rows, `SELECT * FROM resource_provider_traits WHERE resource_provider_id = $1`, rp.ID)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)

	// replacing the set drops CUSTOM_GOLD and keeps HW_CPU_X86_AVX2
	err = db.SetTraits(s.DB, &rp, []string{"HW_CPU_X86_AVX2"})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, int64(2), rp.Generation)

	rows = nil
	_, err = s.DB.Select(&rows, `SELECT * FROM resource_provider_traits WHERE resource_provider_id = $1`, rp.ID)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)

	// setting the exact same trait again is idempotent: the row is neither
	// duplicated nor deleted-and-recreated, only the generation bumps
	err = db.SetTraits(s.DB, &rp, []string{"HW_CPU_X86_AVX2"})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, int64(3), rp.Generation)
	rows = nil
	_, err = s.DB.Select(&rows, `SELECT * FROM resource_provider_traits WHERE resource_provider_id = $1`, rp.ID)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSetAggregatesAddsAndRemoves(t *testing.T) {
	s := test.NewSetup(t)
	rp := test.NewProvider(t, s.DB, "uuid-for-rp", "rp", nil)

	err := db.SetAggregates(s.DB, &rp, []string{"agg-1", "agg-2"})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, int64(1), rp.Generation)

	err = db.SetAggregates(s.DB, &rp, []string{"agg-2"})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, int64(2), rp.Generation)

	var rows []db.ResourceProviderAggregate
	_, err = s.DB.Select(&rows, `SELECT * FROM resource_provider_aggregates WHERE resource_provider_id = $1`, rp.ID)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestListResourceProvidersFilteredByUUIDAndName(t *testing.T) {
	s := test.NewSetup(t)
	test.NewProvider(t, s.DB, "uuid-alpha", "alpha", nil)
	test.NewProvider(t, s.DB, "uuid-beta", "beta", nil)
	test.NewProvider(t, s.DB, "uuid-gamma", "gamma", nil)

	all, err := db.ListResourceProvidersFiltered(s.DB, db.ResourceProviderFilter{})
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	byName, err := db.ListResourceProvidersFiltered(s.DB, db.ResourceProviderFilter{Names: []string{"alpha"}})
	assert.NoError(t, err)
	if assert.Len(t, byName, 1) {
		assert.Equal(t, "uuid-alpha", byName[0].UUID)
	}

	byUUIDs, err := db.ListResourceProvidersFiltered(s.DB, db.ResourceProviderFilter{UUIDs: []string{"uuid-beta", "uuid-gamma"}})
	assert.NoError(t, err)
	assert.Len(t, byUUIDs, 2)
}

func TestCheckGenerationToleratesNegativeOne(t *testing.T) {
	assert.NoError(t, db.CheckGeneration("resource provider", "uuid-x", 5, -1))
	assert.NoError(t, db.CheckGeneration("resource provider", "uuid-x", 5, 5))
	assert.Error(t, db.CheckGeneration("resource provider", "uuid-x", 5, 4))
}
