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

	"github.com/gorilla/mux"
	"github.com/sapcc/go-api-declarations/cadf"
	"github.com/sapcc/go-bits/audittools"
	"github.com/sapcc/go-bits/gopherpolicy"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/placement/internal/allocation"
	"github.com/sapcc/placement/internal/core"
	"github.com/sapcc/placement/internal/db"
)

type allocationProviderBody struct {
	Generation *int64              `json:"generation,omitempty"`
	Resources  map[string]int64    `json:"resources"`
	Mappings   map[string][]string `json:"mappings,omitempty"`
}

type putAllocationsRequest struct {
	ConsumerGeneration *int64                             `json:"consumer_generation,omitempty"`
	ProjectID          string                             `json:"project_id"`
	UserID             string                             `json:"user_id"`
	ConsumerType       string                             `json:"consumer_type,omitempty"`
	Allocations        map[string]allocationProviderBody `json:"allocations"`
}

type postAllocationsRequest map[string]putAllocationsRequest

// toConsumerBundle drops the client-supplied per-suffix mappings: they are
// advisory, echoing back what GetAllocationCandidates returned, and carry no
// weight in the writer's generation checks (§4.G).
func toConsumerBundle(body putAllocationsRequest) allocation.ConsumerBundle {
	bundle := allocation.ConsumerBundle{
		ConsumerGeneration: body.ConsumerGeneration,
		ProjectID:          body.ProjectID,
		UserID:             body.UserID,
		ConsumerType:       body.ConsumerType,
		Allocations:        make(map[string]allocation.ProviderAllocation, len(body.Allocations)),
	}
	for rpUUID, pb := range body.Allocations {
		bundle.Allocations[rpUUID] = allocation.ProviderAllocation{
			ProviderGeneration: pb.Generation,
			Resources:          pb.Resources,
		}
	}
	return bundle
}

// GetAllocations handles GET /v1/allocations/{consumer}.
func (p *v1Provider) GetAllocations(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/allocations/:consumer")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:allocations:list") {
		return
	}

	consumerUUID := mux.Vars(r)["consumer"]
	c, err := db.GetConsumerByUUID(p.DB, consumerUUID)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	if c == nil {
		respondwith.JSON(w, http.StatusOK, map[string]any{"allocations": map[string]any{}})
		return
	}

	rows, err := db.ListAllocationsForConsumer(p.DB, c.ID)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	byProvider := make(map[string]map[string]int64, len(rows))
	for _, a := range rows {
		var rp db.ResourceProvider
		if err := p.DB.SelectOne(&rp, `SELECT * FROM resource_providers WHERE id = $1`, a.ResourceProviderID); err != nil {
			RespondWithError(w, r, err)
			return
		}
		var rc db.ResourceClass
		if err := p.DB.SelectOne(&rc, `SELECT * FROM resource_classes WHERE id = $1`, a.ResourceClassID); err != nil {
			RespondWithError(w, r, err)
			return
		}
		if byProvider[rp.UUID] == nil {
			byProvider[rp.UUID] = make(map[string]int64)
		}
		byProvider[rp.UUID][rc.Name] = a.Used
	}

	resp := map[string]any{
		"consumer_generation": c.Generation,
		"allocations":         byProvider,
	}
	if c.ConsumerType != "" {
		resp["consumer_type"] = c.ConsumerType
	}
	respondwith.JSON(w, http.StatusOK, resp)
}

// PutAllocations handles PUT /v1/allocations/{consumer}: replace one
// consumer's bundle (§4.G).
func (p *v1Provider) PutAllocations(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/allocations/:consumer")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:allocations:update") {
		return
	}
	consumerUUID := mux.Vars(r)["consumer"]

	var body putAllocationsRequest
	if !RequireJSON(w, r, &body) {
		return
	}

	req := allocation.WriteRequest{Bundles: map[string]allocation.ConsumerBundle{consumerUUID: toConsumerBundle(body)}}
	result, err := p.writeAllocations(r, token, cadf.UpdateAction, req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"result": result})
}

// PostAllocations handles POST /v1/allocations: atomically swap the bundles
// of many consumers (§4.G).
func (p *v1Provider) PostAllocations(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/allocations")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:allocations:update") {
		return
	}

	var body postAllocationsRequest
	if !RequireJSON(w, r, &body) {
		return
	}

	req := allocation.WriteRequest{Bundles: make(map[string]allocation.ConsumerBundle, len(body))}
	for consumerUUID, bundleBody := range body {
		req.Bundles[consumerUUID] = toConsumerBundle(bundleBody)
	}

	result, err := p.writeAllocations(r, token, cadf.UpdateAction, req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"result": result})
}

// DeleteAllocations handles DELETE /v1/allocations/{consumer}: empty a
// bundle (§4.G "Empty bundle ... removes its allocations and the consumer
// record").
func (p *v1Provider) DeleteAllocations(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/allocations/:consumer")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:allocations:delete") {
		return
	}
	consumerUUID := mux.Vars(r)["consumer"]

	req := allocation.WriteRequest{
		Bundles: map[string]allocation.ConsumerBundle{
			consumerUUID: {Allocations: map[string]allocation.ProviderAllocation{}},
		},
	}
	_, err := p.writeAllocations(r, token, cadf.DeleteAction, req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type allocationAuditTarget struct {
	cadf.Resource

	Consumers []string `json:"consumers"`
}

func (p *v1Provider) writeAllocations(r *http.Request, token *gopherpolicy.Token, action cadf.Action, req allocation.WriteRequest) (*allocation.WriteResult, error) {
	if len(req.Bundles) == 0 {
		return nil, core.BadRequest(core.CodeQueryMissingValue, "at least one consumer bundle is required")
	}

	tx, err := p.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	result, err := allocation.Apply(tx, req)
	if err != nil {
		return nil, err
	}
	err = tx.Commit()
	if err != nil {
		return nil, err
	}

	consumerUUIDs := make([]string, 0, len(req.Bundles))
	for uuid := range req.Bundles {
		consumerUUIDs = append(consumerUUIDs, uuid)
	}
	p.auditor.Record(audittools.EventParameters{
		Time:       p.timeNow(),
		Request:    r,
		User:       token,
		ReasonCode: http.StatusOK,
		Action:     action,
		Target: allocationAuditTarget{
			Resource:  cadf.Resource{TypeURI: "service/placement/allocations"},
			Consumers: consumerUUIDs,
		},
	})

	return result, nil
}
