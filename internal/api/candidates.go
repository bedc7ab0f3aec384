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
	"context"
	"net/http"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/placement/internal/capacity"
	"github.com/sapcc/placement/internal/db"
	"github.com/sapcc/placement/internal/index"
	"github.com/sapcc/placement/internal/query"
	"github.com/sapcc/placement/internal/solver"
)

type candidateResponse struct {
	AllocationRequests []allocationRequestBody        `json:"allocation_requests"`
	ProviderSummaries  map[string]providerSummaryBody `json:"provider_summaries"`
}

type allocationRequestBody struct {
	Allocations map[string]providerAllocationBody `json:"allocations"`
	Mappings    map[string][]string               `json:"mappings"`
}

type providerAllocationBody struct {
	Resources map[string]int64 `json:"resources"`
}

type providerSummaryBody struct {
	Resources          map[string]resourceSummaryBody `json:"resources"`
	Traits             []string                        `json:"traits"`
	ParentProviderUUID string                          `json:"parent_provider_uuid,omitempty"`
	RootProviderUUID   string                          `json:"root_provider_uuid"`
}

type resourceSummaryBody struct {
	Capacity int64 `json:"capacity"`
	Used     int64 `json:"used"`
}

// GetAllocationCandidates handles GET /v1/allocation_candidates (§6, §4.D-F).
func (p *v1Provider) GetAllocationCandidates(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/allocation_candidates")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:allocation_candidates:list") {
		return
	}

	defaultLimit := p.Config.DefaultCandidateLimit
	req, err := query.Parse(r.URL.Query(), defaultLimit)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	if err := solver.ValidateRequest(req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.solverDeadline())
	defer cancel()

	result, err := p.solve(ctx, req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, result)
}

// solve loads everything the solver needs for one request and runs it to
// completion. It performs no writes, so it takes no transaction (§5: "read
// traffic takes no locks; staleness is tolerated because the writer
// revalidates").
func (p *v1Provider) solve(ctx context.Context, req solver.Request) (*candidateResponse, error) {
	providers, err := db.ListResourceProviders(p.DB)
	if err != nil {
		return nil, err
	}
	tree := solver.NewTree(providers)

	var traitRows []index.TraitRow
	_, err = p.DB.Select(&traitRows, `
		SELECT rpt.resource_provider_id AS provider_id, t.name AS trait_name
		  FROM resource_provider_traits rpt JOIN traits t ON t.id = rpt.trait_id`)
	if err != nil {
		return nil, err
	}
	var aggRows []index.AggregateRow
	_, err = p.DB.Select(&aggRows, `
		SELECT rpa.resource_provider_id AS provider_id, a.uuid AS aggregate_uuid
		  FROM resource_provider_aggregates rpa JOIN aggregates a ON a.id = rpa.aggregate_id`)
	if err != nil {
		return nil, err
	}
	idx := index.BuildSnapshot(traitRows, aggRows)

	var inventories []db.Inventory
	_, err = p.DB.Select(&inventories, `SELECT * FROM inventories`)
	if err != nil {
		return nil, err
	}
	var usage []capacity.UsageRow
	_, err = p.DB.Select(&usage, `
		SELECT resource_provider_id AS provider, resource_class_id AS class, SUM(used) AS used
		  FROM allocations GROUP BY resource_provider_id, resource_class_id`)
	if err != nil {
		return nil, err
	}
	capView := capacity.BuildView(inventories, usage)

	var classes []db.ResourceClass
	_, err = p.DB.Select(&classes, `SELECT * FROM resource_classes`)
	if err != nil {
		return nil, err
	}
	catalog := make(solver.ClassCatalog, len(classes))
	for _, c := range classes {
		catalog[c.Name] = c.ID
	}

	matchesBySuffix := make(map[string][]solver.GroupMatch, len(req.Groups))
	for _, g := range req.Groups {
		matchesBySuffix[g.Suffix] = solver.MatchGroup(g, providers, catalog, capView, idx)
	}

	candidates, err := solver.Combine(ctx, req, tree, matchesBySuffix)
	if err != nil {
		return nil, err
	}

	return renderCandidateResponse(candidates, providers, tree, capView, idx, classes), nil
}

func renderCandidateResponse(candidates []solver.AllocationRequest, providers []db.ResourceProvider, tree *solver.Tree, capView *capacity.View, idx *index.Snapshot, classes []db.ResourceClass) *candidateResponse {
	resp := &candidateResponse{ProviderSummaries: make(map[string]providerSummaryBody)}

	usedProviders := make(map[db.ResourceProviderID]bool)
	for _, c := range candidates {
		body := allocationRequestBody{
			Allocations: make(map[string]providerAllocationBody, len(c.Allocations)),
			Mappings:    make(map[string][]string, len(c.Mappings)),
		}
		for providerID, byClass := range c.Allocations {
			usedProviders[providerID] = true
			body.Allocations[tree.UUID(providerID)] = providerAllocationBody{Resources: byClass}
		}
		for suffix, providerIDs := range c.Mappings {
			uuids := make([]string, len(providerIDs))
			for i, id := range providerIDs {
				usedProviders[id] = true
				uuids[i] = tree.UUID(id)
			}
			body.Mappings[suffix] = uuids
		}
		resp.AllocationRequests = append(resp.AllocationRequests, body)
	}

	providerByID := make(map[db.ResourceProviderID]db.ResourceProvider, len(providers))
	for _, rp := range providers {
		providerByID[rp.ID] = rp
	}
	for providerID := range usedProviders {
		rp := providerByID[providerID]
		summary := providerSummaryBody{
			Resources:        make(map[string]resourceSummaryBody),
			Traits:           idx.TraitsOf(rp.ID),
			RootProviderUUID: tree.UUID(rp.RootID),
		}
		if rp.ParentID != nil {
			summary.ParentProviderUUID = tree.UUID(*rp.ParentID)
		}
		for _, rc := range classes {
			if !capView.HasInventory(rp.ID, rc.ID) {
				continue
			}
			summary.Resources[rc.Name] = resourceSummaryBody{
				Capacity: capView.Remaining(rp.ID, rc.ID) + capView.Used(rp.ID, rc.ID),
				Used:     capView.Used(rp.ID, rc.ID),
			}
		}
		resp.ProviderSummaries[rp.UUID] = summary
	}

	if resp.AllocationRequests == nil {
		resp.AllocationRequests = []allocationRequestBody{}
	}
	return resp
}
