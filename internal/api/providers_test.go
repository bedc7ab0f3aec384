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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/placement/internal/test"
)

func setupProvidersTest(t *testing.T) test.Setup {
	return test.NewSetup(t, test.WithAPIHandler(NewV1API))
}

func TestListResourceProvidersEmpty(t *testing.T) {
	s := setupProvidersTest(t)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/resource_providers",
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.JSONObject{"resource_providers": []assert.JSONObject{}},
	}.Check(t, s.Handler)
}

func TestCreateAndGetResourceProvider(t *testing.T) {
	s := setupProvidersTest(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/resource_providers",
		strings.NewReader(`{"name":"compute-node-1"}`))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ResourceProvider struct {
			UUID       string `json:"uuid"`
			Name       string `json:"name"`
			Generation int64  `json:"generation"`
		} `json:"resource_provider"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ResourceProvider.UUID == "" {
		t.Fatal("expected a generated UUID in the response")
	}
	if created.ResourceProvider.Name != "compute-node-1" {
		t.Fatalf("expected name compute-node-1, got %q", created.ResourceProvider.Name)
	}

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/resource_providers/" + created.ResourceProvider.UUID,
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{"resource_provider": assert.JSONObject{
			"uuid":               created.ResourceProvider.UUID,
			"name":               "compute-node-1",
			"root_provider_uuid": created.ResourceProvider.UUID,
			"generation":         float64(0),
		}},
	}.Check(t, s.Handler)
}

func TestListResourceProvidersFilteredByName(t *testing.T) {
	s := setupProvidersTest(t)
	test.NewProvider(t, s.DB, "uuid-for-alpha", "alpha", nil)
	test.NewProvider(t, s.DB, "uuid-for-beta", "beta", nil)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/resource_providers?name=alpha",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{"resource_providers": []assert.JSONObject{
			{
				"uuid":               "uuid-for-alpha",
				"name":               "alpha",
				"root_provider_uuid": "uuid-for-alpha",
				"generation":         float64(0),
			},
		}},
	}.Check(t, s.Handler)
}

func TestListResourceProvidersFilteredKeepsParentUUIDResolvable(t *testing.T) {
	s := setupProvidersTest(t)
	root := test.NewProvider(t, s.DB, "uuid-for-root", "root", nil)
	test.NewProvider(t, s.DB, "uuid-for-child", "child", &root.ID)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/resource_providers?name=child",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{"resource_providers": []assert.JSONObject{
			{
				"uuid":                 "uuid-for-child",
				"name":                 "child",
				"parent_provider_uuid": "uuid-for-root",
				"root_provider_uuid":   "uuid-for-root",
				"generation":           float64(0),
			},
		}},
	}.Check(t, s.Handler)
}

func TestGetResourceProviderNotFound(t *testing.T) {
	s := setupProvidersTest(t)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/v1/resource_providers/does-not-exist",
		ExpectStatus: http.StatusNotFound,
		ExpectBody: assert.JSONObject{"errors": []assert.JSONObject{
			{
				"title":  "not found",
				"code":   "placement.undefined_code",
				"detail": "no such resource provider: does-not-exist",
			},
		}},
	}.Check(t, s.Handler)
}
