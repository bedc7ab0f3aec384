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

package api

import (
	"net/http"
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/placement/internal/db"
	"github.com/sapcc/placement/internal/test"
)

func TestGetAllocationCandidatesBasic(t *testing.T) {
	s := setupProvidersTest(t)
	rp := seedProviderWithInventory(t, s, "uuid-for-rp", "rp", 10)
	if err := db.SetTraits(s.DB, &rp, []string{"CUSTOM_GOLD"}); err != nil {
		t.Fatal(err)
	}

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/allocation_candidates?resources=VCPU:4",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{
			"allocation_requests": []assert.JSONObject{
				{
					"allocations": assert.JSONObject{
						"uuid-for-rp": assert.JSONObject{"resources": assert.JSONObject{"VCPU": float64(4)}},
					},
					"mappings": assert.JSONObject{"": []string{"uuid-for-rp"}},
				},
			},
			"provider_summaries": assert.JSONObject{
				"uuid-for-rp": assert.JSONObject{
					"resources":          assert.JSONObject{"VCPU": assert.JSONObject{"capacity": float64(10), "used": float64(0)}},
					"traits":             []string{"CUSTOM_GOLD"},
					"root_provider_uuid": "uuid-for-rp",
				},
			},
		},
	}.Check(t, s.Handler)
}

func TestGetAllocationCandidatesNoSupplierReturnsEmpty(t *testing.T) {
	s := setupProvidersTest(t)
	seedProviderWithInventory(t, s, "uuid-for-rp", "rp", 10)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/allocation_candidates?resources=VCPU:999",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{
			"allocation_requests": []assert.JSONObject{},
			"provider_summaries":  assert.JSONObject{},
		},
	}.Check(t, s.Handler)
}

func TestGetAllocationCandidatesRejectsResourcelessOnlyRequest(t *testing.T) {
	s := setupProvidersTest(t)
	test.NewProvider(t, s.DB, "uuid-for-rp", "rp", nil)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/allocation_candidates?required=CUSTOM_GOLD",
		ExpectStatus: http.StatusBadRequest,
	}.Check(t, s.Handler)
}
