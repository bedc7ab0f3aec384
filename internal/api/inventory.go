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

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/placement/internal/db"
)

type inventoryBody struct {
	Total           int64   `json:"total"`
	Reserved        int64   `json:"reserved"`
	MinUnit         int64   `json:"min_unit"`
	MaxUnit         int64   `json:"max_unit"`
	StepSize        int64   `json:"step_size"`
	AllocationRatio float64 `json:"allocation_ratio"`
}

type putInventoriesRequest struct {
	ResourceProviderGeneration int64                    `json:"resource_provider_generation"`
	Inventories                map[string]inventoryBody `json:"inventories"`
}

// ListInventories handles GET /v1/resource_providers/{uuid}/inventories
// (§3 Inventory).
func (p *v1Provider) ListInventories(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid/inventories")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:inventories:list") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}

	var rows []db.Inventory
	_, err := p.DB.Select(&rows, `SELECT * FROM inventories WHERE resource_provider_id = $1`, rp.ID)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	result := make(map[string]inventoryBody, len(rows))
	for _, inv := range rows {
		var rc db.ResourceClass
		err := p.DB.SelectOne(&rc, `SELECT * FROM resource_classes WHERE id = $1`, inv.ResourceClassID)
		if err != nil {
			RespondWithError(w, r, err)
			return
		}
		result[rc.Name] = inventoryBody{
			Total: inv.Total, Reserved: inv.Reserved, MinUnit: inv.MinUnit,
			MaxUnit: inv.MaxUnit, StepSize: inv.StepSize, AllocationRatio: inv.AllocationRatio,
		}
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"resource_provider_generation": rp.Generation,
		"inventories":                  result,
	})
}

// PutInventories handles PUT /v1/resource_providers/{uuid}/inventories:
// replaces the full set of inventory rows for a provider (§4.A).
func (p *v1Provider) PutInventories(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid/inventories")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:inventories:update") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}

	var req putInventoriesRequest
	if !RequireJSON(w, r, &req) {
		return
	}

	tx, err := p.DB.Begin()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	wanted := make([]db.Inventory, 0, len(req.Inventories))
	for rcName, body := range req.Inventories {
		rc, err := db.GetOrCreateResourceClass(tx, rcName)
		if err != nil {
			RespondWithError(w, r, err)
			return
		}
		wanted = append(wanted, db.Inventory{
			ResourceProviderID: rp.ID,
			ResourceClassID:    rc.ID,
			Total:              body.Total,
			Reserved:           body.Reserved,
			MinUnit:            body.MinUnit,
			MaxUnit:            body.MaxUnit,
			StepSize:           body.StepSize,
			AllocationRatio:    body.AllocationRatio,
		})
	}

	err = db.SetInventories(tx, rp, wanted, req.ResourceProviderGeneration)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	err = tx.Commit()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"resource_provider_generation": rp.Generation})
}

type putTraitsRequest struct {
	ResourceProviderGeneration int64    `json:"resource_provider_generation"`
	Traits                     []string `json:"traits"`
}

// ListTraits handles GET /v1/resource_providers/{uuid}/traits.
func (p *v1Provider) ListTraits(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid/traits")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:traits:list") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}

	var names []string
	_, err := p.DB.Select(&names, `
		SELECT t.name FROM resource_provider_traits rpt JOIN traits t ON t.id = rpt.trait_id
		WHERE rpt.resource_provider_id = $1 ORDER BY t.name`, rp.ID)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"resource_provider_generation": rp.Generation,
		"traits":                       names,
	})
}

// PutTraits handles PUT /v1/resource_providers/{uuid}/traits: replaces the
// full set of traits for a provider (§3 invariant 5: memberships are sets).
func (p *v1Provider) PutTraits(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid/traits")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:traits:update") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}

	var req putTraitsRequest
	if !RequireJSON(w, r, &req) {
		return
	}

	tx, err := p.DB.Begin()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	err = db.CheckGeneration("resource provider", rp.UUID, rp.Generation, req.ResourceProviderGeneration)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	err = db.SetTraits(tx, rp, req.Traits)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	err = tx.Commit()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"resource_provider_generation": rp.Generation})
}

type putAggregatesRequest struct {
	ResourceProviderGeneration int64    `json:"resource_provider_generation"`
	Aggregates                 []string `json:"aggregates"`
}

// ListAggregates handles GET /v1/resource_providers/{uuid}/aggregates.
func (p *v1Provider) ListAggregates(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid/aggregates")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:aggregates:list") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}

	var uuids []string
	_, err := p.DB.Select(&uuids, `
		SELECT a.uuid FROM resource_provider_aggregates rpa JOIN aggregates a ON a.id = rpa.aggregate_id
		WHERE rpa.resource_provider_id = $1 ORDER BY a.uuid`, rp.ID)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"resource_provider_generation": rp.Generation,
		"aggregates":                   uuids,
	})
}

// PutAggregates handles PUT /v1/resource_providers/{uuid}/aggregates:
// replaces the full set of aggregate memberships for a provider.
func (p *v1Provider) PutAggregates(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid/aggregates")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:aggregates:update") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}

	var req putAggregatesRequest
	if !RequireJSON(w, r, &req) {
		return
	}

	tx, err := p.DB.Begin()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	err = db.CheckGeneration("resource provider", rp.UUID, rp.Generation, req.ResourceProviderGeneration)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	err = db.SetAggregates(tx, rp, req.Aggregates)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	err = tx.Commit()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"resource_provider_generation": rp.Generation})
}
