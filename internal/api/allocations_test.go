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

func seedProviderWithInventory(t *testing.T, s test.Setup, uuid, name string, total int64) db.ResourceProvider {
	t.Helper()
	rp := test.NewProvider(t, s.DB, uuid, name, nil)
	rc, err := db.GetOrCreateResourceClass(s.DB, "VCPU")
	if err != nil {
		t.Fatal(err)
	}
	err = db.SetInventories(s.DB, &rp, []db.Inventory{
		{ResourceProviderID: rp.ID, ResourceClassID: rc.ID, Total: total, MinUnit: 1, MaxUnit: total, StepSize: 1, AllocationRatio: 1},
	}, -1)
	if err != nil {
		t.Fatal(err)
	}
	return rp
}

func TestPutGetAndDeleteAllocations(t *testing.T) {
	s := setupProvidersTest(t)
	seedProviderWithInventory(t, s, "uuid-for-rp", "rp", 10)

	assert.HTTPRequest{
		Method: "PUT",
		Path:   "/v1/allocations/uuid-for-consumer",
		Body: assert.JSONObject{
			"project_id": "uuid-for-project",
			"allocations": assert.JSONObject{
				"uuid-for-rp": assert.JSONObject{"resources": assert.JSONObject{"VCPU": 4}},
			},
		},
		ExpectStatus: http.StatusOK,
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/allocations/uuid-for-consumer",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{
			"consumer_generation": float64(1),
			"allocations": assert.JSONObject{
				"uuid-for-rp": assert.JSONObject{"VCPU": float64(4)},
			},
		},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       "DELETE",
		Path:         "/v1/allocations/uuid-for-consumer",
		ExpectStatus: http.StatusNoContent,
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/allocations/uuid-for-consumer",
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.JSONObject{"allocations": assert.JSONObject{}},
	}.Check(t, s.Handler)
}

func TestPutAllocationsCarriesConsumerType(t *testing.T) {
	s := setupProvidersTest(t)
	seedProviderWithInventory(t, s, "uuid-for-rp", "rp", 10)

	assert.HTTPRequest{
		Method: "PUT",
		Path:   "/v1/allocations/uuid-for-consumer",
		Body: assert.JSONObject{
			"project_id":    "uuid-for-project",
			"consumer_type": "INSTANCE",
			"allocations": assert.JSONObject{
				"uuid-for-rp": assert.JSONObject{"resources": assert.JSONObject{"VCPU": 4}},
			},
		},
		ExpectStatus: http.StatusOK,
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/allocations/uuid-for-consumer",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{
			"consumer_generation": float64(1),
			"consumer_type":       "INSTANCE",
			"allocations": assert.JSONObject{
				"uuid-for-rp": assert.JSONObject{"VCPU": float64(4)},
			},
		},
	}.Check(t, s.Handler)
}

func TestPutAllocationsRejectsOverCapacity(t *testing.T) {
	s := setupProvidersTest(t)
	seedProviderWithInventory(t, s, "uuid-for-rp", "rp", 10)

	assert.HTTPRequest{
		Method: "PUT",
		Path:   "/v1/allocations/uuid-for-consumer",
		Body: assert.JSONObject{
			"project_id": "uuid-for-project",
			"allocations": assert.JSONObject{
				"uuid-for-rp": assert.JSONObject{"resources": assert.JSONObject{"VCPU": 20}},
			},
		},
		ExpectStatus: http.StatusConflict,
	}.Check(t, s.Handler)
}

func TestPostAllocationsAtomicSwapAcrossConsumers(t *testing.T) {
	s := setupProvidersTest(t)
	seedProviderWithInventory(t, s, "uuid-for-rp", "rp", 10)

	assert.HTTPRequest{
		Method: "POST",
		Path:   "/v1/allocations",
		Body: assert.JSONObject{
			"uuid-for-consumer-1": assert.JSONObject{
				"project_id":  "uuid-for-project",
				"allocations": assert.JSONObject{"uuid-for-rp": assert.JSONObject{"resources": assert.JSONObject{"VCPU": 3}}},
			},
			"uuid-for-consumer-2": assert.JSONObject{
				"project_id":  "uuid-for-project",
				"allocations": assert.JSONObject{"uuid-for-rp": assert.JSONObject{"resources": assert.JSONObject{"VCPU": 3}}},
			},
		},
		ExpectStatus: http.StatusOK,
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/allocations/uuid-for-consumer-1",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{
			"consumer_generation": float64(1),
			"allocations":         assert.JSONObject{"uuid-for-rp": assert.JSONObject{"VCPU": float64(3)}},
		},
	}.Check(t, s.Handler)
}
