/*******************************************************************************
*
* Copyright 2017 SAP SE
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
	"time"

	"github.com/go-gorp/gorp/v3"
	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/audittools"
	"github.com/sapcc/go-bits/gopherpolicy"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/placement/internal/core"
	"github.com/sapcc/placement/internal/db"
)

// VersionData is used by version advertisement handlers.
type VersionData struct {
	Status string            `json:"status"`
	ID     string            `json:"id"`
	Links  []VersionLinkData `json:"links"`
}

// VersionLinkData is used by version advertisement handlers, as part of the
// VersionData struct.
type VersionLinkData struct {
	URL      string `json:"href"`
	Relation string `json:"rel"`
	Type     string `json:"type,omitempty"`
}

// v1Provider implements httpapi.API for the Placement v1 surface: resource
// provider/inventory/trait/aggregate CRUD (§4.A's HTTP face), the candidate
// endpoint (§4.D-F), and the allocation writer (§4.G).
type v1Provider struct {
	DB             *gorp.DbMap
	Config         core.Config
	VersionData    VersionData
	tokenValidator gopherpolicy.Validator
	auditor        audittools.Auditor
	// slot for test doubles
	timeNow func() time.Time
}

// NewV1API creates an httpapi.API that serves the Placement v1 API. It also
// returns the VersionData for this API version, needed for the version
// advertisement on "GET /".
func NewV1API(dbm *gorp.DbMap, cfg core.Config, tokenValidator gopherpolicy.Validator, auditor audittools.Auditor, timeNow func() time.Time) httpapi.API {
	p := &v1Provider{DB: dbm, Config: cfg, tokenValidator: tokenValidator, auditor: auditor, timeNow: timeNow}
	p.VersionData = VersionData{
		Status: "CURRENT",
		ID:     "v1",
		Links: []VersionLinkData{
			{Relation: "self", URL: "/v1/"},
		},
	}
	return p
}

// AddTo implements the httpapi.API interface.
func (p *v1Provider) AddTo(r *mux.Router) {
	r.Methods("HEAD", "GET").Path("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpapi.IdentifyEndpoint(r, "/")
		httpapi.SkipRequestLog(r)
		respondwith.JSON(w, 300, map[string]any{"versions": []VersionData{p.VersionData}})
	})
	r.Methods("GET").Path("/v1/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpapi.IdentifyEndpoint(r, "/v1/")
		httpapi.SkipRequestLog(r)
		respondwith.JSON(w, 200, map[string]any{"version": p.VersionData})
	})

	r.Methods("GET").Path("/v1/allocation_candidates").HandlerFunc(p.GetAllocationCandidates)

	r.Methods("GET").Path("/v1/resource_providers").HandlerFunc(p.ListResourceProviders)
	r.Methods("POST").Path("/v1/resource_providers").HandlerFunc(p.CreateResourceProvider)
	r.Methods("GET").Path("/v1/resource_providers/{uuid}").HandlerFunc(p.GetResourceProvider)
	r.Methods("PUT").Path("/v1/resource_providers/{uuid}").HandlerFunc(p.UpdateResourceProvider)
	r.Methods("DELETE").Path("/v1/resource_providers/{uuid}").HandlerFunc(p.DeleteResourceProvider)

	r.Methods("GET").Path("/v1/resource_providers/{uuid}/inventories").HandlerFunc(p.ListInventories)
	r.Methods("PUT").Path("/v1/resource_providers/{uuid}/inventories").HandlerFunc(p.PutInventories)

	r.Methods("GET").Path("/v1/resource_providers/{uuid}/traits").HandlerFunc(p.ListTraits)
	r.Methods("PUT").Path("/v1/resource_providers/{uuid}/traits").HandlerFunc(p.PutTraits)

	r.Methods("GET").Path("/v1/resource_providers/{uuid}/aggregates").HandlerFunc(p.ListAggregates)
	r.Methods("PUT").Path("/v1/resource_providers/{uuid}/aggregates").HandlerFunc(p.PutAggregates)

	r.Methods("GET").Path("/v1/allocations/{consumer}").HandlerFunc(p.GetAllocations)
	r.Methods("PUT").Path("/v1/allocations/{consumer}").HandlerFunc(p.PutAllocations)
	r.Methods("DELETE").Path("/v1/allocations/{consumer}").HandlerFunc(p.DeleteAllocations)
	r.Methods("POST").Path("/v1/allocations").HandlerFunc(p.PostAllocations)
}

// RequireJSON will parse the request body into the given data structure, or
// write an error response if that fails.
func RequireJSON(w http.ResponseWriter, r *http.Request, data any) bool {
	err := json.NewDecoder(r.Body).Decode(data)
	if err != nil {
		RespondWithError(w, r, core.BadRequest(core.CodeQueryBadValue, "request body is not valid JSON: "+err.Error()))
		return false
	}
	return true
}

// CheckToken checks the validity of the request's X-Auth-Token in Keystone,
// and returns a Token instance for checking authorization. Any errors that
// occur during this function are deferred until Require() is called.
func (p *v1Provider) CheckToken(r *http.Request) *gopherpolicy.Token {
	t := p.tokenValidator.CheckToken(r)
	t.Context.Request = mux.Vars(r)
	return t
}

// FindResourceProviderFromRequest loads the db.ResourceProvider referenced by
// the :uuid path parameter. Any errors are written into the response
// immediately and cause a nil return value.
func (p *v1Provider) FindResourceProviderFromRequest(w http.ResponseWriter, r *http.Request) *db.ResourceProvider {
	uuid := mux.Vars(r)["uuid"]
	rp, err := db.GetResourceProviderByUUID(p.DB, uuid)
	if err != nil {
		RespondWithError(w, r, err)
		return nil
	}
	return rp
}

func (p *v1Provider) solverDeadline() time.Duration {
	if p.Config.SolverDeadline <= 0 {
		return 5 * time.Second
	}
	return p.Config.SolverDeadline
}
