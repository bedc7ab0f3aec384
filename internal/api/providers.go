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

	"github.com/gofrs/uuid"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/placement/internal/core"
	"github.com/sapcc/placement/internal/db"
)

type resourceProviderBody struct {
	UUID       string  `json:"uuid"`
	Name       string  `json:"name"`
	ParentUUID *string `json:"parent_provider_uuid,omitempty"`
	RootUUID   string  `json:"root_provider_uuid"`
	Generation int64   `json:"generation"`
}

func renderResourceProvider(rp db.ResourceProvider, uuidOf func(db.ResourceProviderID) string) resourceProviderBody {
	body := resourceProviderBody{
		UUID:       rp.UUID,
		Name:       rp.Name,
		RootUUID:   uuidOf(rp.RootID),
		Generation: rp.Generation,
	}
	if rp.ParentID != nil {
		parentUUID := uuidOf(*rp.ParentID)
		body.ParentUUID = &parentUUID
	}
	return body
}

// ListResourceProviders handles GET /v1/resource_providers. Supports the
// simple `?uuid=` and `?name=` equality/IN filters (repeatable query
// parameters); omitting both returns every provider.
func (p *v1Provider) ListResourceProviders(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:resource_providers:list") {
		return
	}

	query := r.URL.Query()
	rps, err := db.ListResourceProvidersFiltered(p.DB, db.ResourceProviderFilter{
		UUIDs: query["uuid"],
		Names: query["name"],
	})
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	// root/parent UUID resolution must consider providers outside the
	// filtered set too (a filtered child's parent need not match the filter)
	allRPs := rps
	if len(query["uuid"]) > 0 || len(query["name"]) > 0 {
		allRPs, err = db.ListResourceProviders(p.DB)
		if err != nil {
			RespondWithError(w, r, err)
			return
		}
	}
	uuidOf := func(id db.ResourceProviderID) string { return p.uuidOf(allRPs, id) }

	stream := NewJSONListStream[resourceProviderBody](w, r, "resource_providers")
	for _, rp := range rps {
		if err := stream.WriteItem(renderResourceProvider(rp, uuidOf)); err != nil {
			stream.FinalizeDocument(err)
			return
		}
	}
	stream.FinalizeDocument(nil)
}

func (p *v1Provider) uuidOf(rps []db.ResourceProvider, id db.ResourceProviderID) string {
	for _, rp := range rps {
		if rp.ID == id {
			return rp.UUID
		}
	}
	return ""
}

// GetResourceProvider handles GET /v1/resource_providers/{uuid}.
func (p *v1Provider) GetResourceProvider(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:resource_providers:show") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"resource_provider": renderResourceProvider(*rp, func(id db.ResourceProviderID) string { return p.singleUUID(id) }),
	})
}

func (p *v1Provider) singleUUID(id db.ResourceProviderID) string {
	var rp db.ResourceProvider
	err := p.DB.SelectOne(&rp, `SELECT * FROM resource_providers WHERE id = $1`, id)
	if err != nil {
		return ""
	}
	return rp.UUID
}

type createResourceProviderRequest struct {
	Name       string  `json:"name"`
	ParentUUID *string `json:"parent_provider_uuid,omitempty"`
}

// CreateResourceProvider handles POST /v1/resource_providers.
func (p *v1Provider) CreateResourceProvider(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:resource_providers:create") {
		return
	}

	var req createResourceProviderRequest
	if !RequireJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		RespondWithError(w, r, core.BadRequest(core.CodeQueryMissingValue, "name is required"))
		return
	}

	generatedUUID, err := uuid.NewV4()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	rp := db.ResourceProvider{UUID: generatedUUID.String(), Name: req.Name}
	if req.ParentUUID != nil {
		parent, err := db.GetResourceProviderByUUID(p.DB, *req.ParentUUID)
		if err != nil {
			RespondWithError(w, r, err)
			return
		}
		rp.ParentID = &parent.ID
	}

	tx, err := p.DB.Begin()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	err = db.CreateResourceProvider(tx, &rp)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	err = tx.Commit()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondwith.JSON(w, http.StatusCreated, map[string]any{
		"resource_provider": renderResourceProvider(rp, func(id db.ResourceProviderID) string {
			if id == rp.ID {
				return rp.UUID
			}
			return p.singleUUID(id)
		}),
	})
}

type updateResourceProviderRequest struct {
	Name             *string `json:"name,omitempty"`
	ParentUUID       *string `json:"parent_provider_uuid"`
	CallerGeneration int64   `json:"generation"`
}

// UpdateResourceProvider handles PUT /v1/resource_providers/{uuid}: renaming
// and reparenting (§3 "a provider may be moved only to a provider with the
// same root, or reparented to become a root").
func (p *v1Provider) UpdateResourceProvider(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:resource_providers:update") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}

	var req updateResourceProviderRequest
	if !RequireJSON(w, r, &req) {
		return
	}

	tx, err := p.DB.Begin()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	if req.ParentUUID != nil {
		var newParentID *db.ResourceProviderID
		if *req.ParentUUID != "" {
			parent, err := db.GetResourceProviderByUUID(tx, *req.ParentUUID)
			if err != nil {
				RespondWithError(w, r, err)
				return
			}
			newParentID = &parent.ID
		}
		err = db.Reparent(tx, rp, newParentID, req.CallerGeneration)
		if err != nil {
			RespondWithError(w, r, err)
			return
		}
	}
	if req.Name != nil {
		rp.Name = *req.Name
		_, err = tx.Update(rp)
		if err != nil {
			RespondWithError(w, r, err)
			return
		}
	}

	err = tx.Commit()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"resource_provider": renderResourceProvider(*rp, func(id db.ResourceProviderID) string {
			if id == rp.ID {
				return rp.UUID
			}
			return p.singleUUID(id)
		}),
	})
}

// DeleteResourceProvider handles DELETE /v1/resource_providers/{uuid} (§3
// Lifecycles: deletable only when it holds no allocations and has no
// children).
func (p *v1Provider) DeleteResourceProvider(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/resource_providers/:uuid")
	token := p.CheckToken(r)
	if !token.Require(w, "placement:resource_providers:delete") {
		return
	}
	rp := p.FindResourceProviderFromRequest(w, r)
	if rp == nil {
		return
	}

	tx, err := p.DB.Begin()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	err = db.DeleteResourceProvider(tx, rp, -1)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	err = tx.Commit()
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
