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

// Package db implements the entity store (spec §4.A): CRUD with optimistic
// generations for providers, inventories, traits, aggregates, and
// allocations. All multi-row writes below execute inside a single
// transaction owned by the caller; this package never opens one itself
// except where explicitly noted.
package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sapcc/placement/internal/core"
)

// CheckGeneration compares the generation stored in the DB against the one
// the caller last observed, and returns a Conflict APIError if they differ.
// A callerGeneration of -1 means "no CAS requested" (spec §4.G step 4: "any
// change since the solver's read is tolerated").
func CheckGeneration(kind string, uuid string, stored, callerGeneration int64) error {
	if callerGeneration < 0 {
		return nil
	}
	if stored != callerGeneration {
		return core.Conflict(core.CodeConcurrentUpdate,
			fmt.Sprintf("%s %s has generation %d, but caller supplied %d", kind, uuid, stored, callerGeneration))
	}
	return nil
}

// GetResourceProviderByUUID loads one resource provider, or a NotFound
// APIError if it does not exist.
func GetResourceProviderByUUID(dbi Interface, uuid string) (*ResourceProvider, error) {
	var rp ResourceProvider
	err := dbi.SelectOne(&rp, `SELECT * FROM resource_providers WHERE uuid = $1`, uuid)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, core.NotFound("no such resource provider: " + uuid)
	case err != nil:
		return nil, err
	default:
		return &rp, nil
	}
}

// ListResourceProviders loads every resource provider. Used by the solver to
// build its per-request in-memory forest (spec §9 "tree as arena").
func ListResourceProviders(dbi Interface) ([]ResourceProvider, error) {
	var rps []ResourceProvider
	_, err := dbi.Select(&rps, `SELECT * FROM resource_providers ORDER BY id`)
	return rps, err
}

// ResourceProviderFilter narrows a ListResourceProvidersFiltered() query to
// providers matching all given fields exactly. A nil or empty slice for a
// field means "no filter on this field". This mirrors the simple equality/
// IN-list filters (`?uuid=`, `?name=`) that the GET /resource_providers
// listing supports alongside the unfiltered case used by the solver.
type ResourceProviderFilter struct {
	UUIDs []string
	Names []string
}

// ListResourceProvidersFiltered is like ListResourceProviders, but narrowed
// by filter. An empty filter returns every provider, same as
// ListResourceProviders.
func ListResourceProvidersFiltered(dbi Interface, filter ResourceProviderFilter) ([]ResourceProvider, error) {
	fields := make(map[string]any)
	if len(filter.UUIDs) > 0 {
		fields["uuid"] = filter.UUIDs
	}
	if len(filter.Names) > 0 {
		fields["name"] = filter.Names
	}
	whereClause, args := BuildSimpleWhereClause(fields, 0)

	var rps []ResourceProvider
	_, err := dbi.Select(&rps, `SELECT * FROM resource_providers WHERE `+whereClause+` ORDER BY id`, args...)
	return rps, err
}

// CreateResourceProvider inserts a new resource provider. If ParentID is nil,
// the new RP becomes its own root; otherwise its RootID is copied from the
// parent (spec §3 invariant 3).
func CreateResourceProvider(tx Interface, rp *ResourceProvider) error {
	if rp.ParentID != nil {
		parent, err := getResourceProviderByID(tx, *rp.ParentID)
		if err != nil {
			return err
		}
		rp.RootID = parent.RootID
		return tx.Insert(rp)
	}
	// a root references itself through root_id, and that foreign key is checked
	// on insert, so the ID is taken from the sequence before the row is written
	id, err := tx.SelectInt(`SELECT nextval(pg_get_serial_sequence('resource_providers', 'id'))`)
	if err != nil {
		return err
	}
	rp.ID = ResourceProviderID(id)
	rp.RootID = rp.ID
	_, err = tx.Exec(`INSERT INTO resource_providers (id, uuid, name, parent_id, root_id, generation) VALUES ($1, $2, $3, NULL, $1, $4)`,
		rp.ID, rp.UUID, rp.Name, rp.Generation)
	return err
}

func getResourceProviderByID(dbi Interface, id ResourceProviderID) (*ResourceProvider, error) {
	var rp ResourceProvider
	err := dbi.SelectOne(&rp, `SELECT * FROM resource_providers WHERE id = $1`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, core.InvariantViolationf("resource provider %d referenced but missing", id)
	case err != nil:
		return nil, err
	default:
		return &rp, nil
	}
}

// Reparent moves a resource provider to a new parent (or to being a root, if
// newParentID is nil), enforcing spec §3's rule that a provider may only move
// within its own root's tree, or become a new root. All descendants' RootID
// are fixed up in the same transaction (invariant 3).
func Reparent(tx Interface, rp *ResourceProvider, newParentID *ResourceProviderID, callerGeneration int64) error {
	err := CheckGeneration("resource provider", rp.UUID, rp.Generation, callerGeneration)
	if err != nil {
		return err
	}

	var newRootID ResourceProviderID
	if newParentID == nil {
		newRootID = rp.ID
	} else {
		newParent, err := getResourceProviderByID(tx, *newParentID)
		if err != nil {
			return err
		}
		if newParent.RootID != rp.RootID {
			return core.BadRequest(core.CodeQueryBadValue,
				"a resource provider may only be reparented within its own tree, or promoted to a new root")
		}
		if err := rejectCycle(tx, rp.ID, *newParentID); err != nil {
			return err
		}
		newRootID = newParent.RootID
	}

	rp.ParentID = newParentID
	rp.Generation++
	_, err = tx.Update(rp)
	if err != nil {
		return err
	}

	if newRootID != rp.RootID {
		err = fixUpSubtreeRoots(tx, rp.ID, newRootID)
		if err != nil {
			return err
		}
	}
	rp.RootID = newRootID
	return nil
}

func rejectCycle(dbi Interface, movingID, newParentID ResourceProviderID) error {
	cursor := &newParentID
	for cursor != nil {
		if *cursor == movingID {
			return core.BadRequest(core.CodeQueryBadValue, "reparenting would create a cycle")
		}
		rp, err := getResourceProviderByID(dbi, *cursor)
		if err != nil {
			return err
		}
		cursor = rp.ParentID
	}
	return nil
}

func fixUpSubtreeRoots(tx Interface, subtreeRootID, newRootID ResourceProviderID) error {
	all, err := ListResourceProviders(tx)
	if err != nil {
		return err
	}
	byParent := make(map[ResourceProviderID][]ResourceProviderID, len(all))
	for _, rp := range all {
		if rp.ParentID != nil {
			byParent[*rp.ParentID] = append(byParent[*rp.ParentID], rp.ID)
		}
	}

	queue := []ResourceProviderID{subtreeRootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		queue = append(queue, byParent[id]...)
		if id == subtreeRootID {
			continue // already updated by the caller
		}
		_, err = tx.Exec(`UPDATE resource_providers SET root_id = $1 WHERE id = $2`, newRootID, id)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteResourceProvider removes a resource provider. It fails with Conflict
// (CodeInventoryInUse) if the RP still holds allocations, and with BadRequest
// if it has children (spec §3 Lifecycles).
func DeleteResourceProvider(tx Interface, rp *ResourceProvider, callerGeneration int64) error {
	err := CheckGeneration("resource provider", rp.UUID, rp.Generation, callerGeneration)
	if err != nil {
		return err
	}

	count, err := tx.SelectInt(`SELECT COUNT(*) FROM allocations WHERE resource_provider_id = $1`, rp.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return core.Conflict(core.CodeInventoryInUse, "resource provider still has allocations")
	}
	count, err = tx.SelectInt(`SELECT COUNT(*) FROM resource_providers WHERE parent_id = $1`, rp.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return core.BadRequest(core.CodeQueryBadValue, "resource provider still has children")
	}

	_, err = tx.Delete(rp)
	return err
}

// GetOrCreateResourceClass returns the ResourceClass row for name, creating
// it if necessary.
func GetOrCreateResourceClass(tx Interface, name string) (*ResourceClass, error) {
	var rc ResourceClass
	err := tx.SelectOne(&rc, `SELECT * FROM resource_classes WHERE name = $1`, name)
	if err == nil {
		return &rc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	rc = ResourceClass{Name: name}
	err = tx.Insert(&rc)
	return &rc, err
}

// GetOrCreateTrait returns the Trait row for name, creating it if necessary.
func GetOrCreateTrait(tx Interface, name string) (*Trait, error) {
	var t Trait
	err := tx.SelectOne(&t, `SELECT * FROM traits WHERE name = $1`, name)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	t = Trait{Name: name}
	err = tx.Insert(&t)
	return &t, err
}

// GetOrCreateAggregate returns the Aggregate row for uuid, creating it if
// necessary.
func GetOrCreateAggregate(tx Interface, uuid string) (*Aggregate, error) {
	var a Aggregate
	err := tx.SelectOne(&a, `SELECT * FROM aggregates WHERE uuid = $1`, uuid)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	a = Aggregate{UUID: uuid}
	err = tx.Insert(&a)
	return &a, err
}

// SetInventories replaces rp's full set of inventory rows with wanted,
// bumping its generation exactly once (spec §3: generation is "bumped on any
// inventory/trait/aggregate mutation").
func SetInventories(tx Interface, rp *ResourceProvider, wanted []Inventory, callerGeneration int64) error {
	err := CheckGeneration("resource provider", rp.UUID, rp.Generation, callerGeneration)
	if err != nil {
		return err
	}

	var existing []Inventory
	_, err = tx.Select(&existing, `SELECT * FROM inventories WHERE resource_provider_id = $1`, rp.ID)
	if err != nil {
		return err
	}

	existingByClass := make(map[ResourceClassID]Inventory, len(existing))
	for _, inv := range existing {
		existingByClass[inv.ResourceClassID] = inv
	}
	wantedByClass := make(map[ResourceClassID]Inventory, len(wanted))
	for _, inv := range wanted {
		wantedByClass[inv.ResourceClassID] = inv

		used, err := tx.SelectInt(`
			SELECT COALESCE(SUM(used), 0) FROM allocations
			WHERE resource_provider_id = $1 AND resource_class_id = $2`,
			rp.ID, inv.ResourceClassID)
		if err != nil {
			return err
		}
		if used > inv.EffectiveCapacity() {
			return core.InvariantViolationf(
				"reducing inventory for resource provider %s would leave %d allocated over a capacity of %d",
				rp.UUID, used, inv.EffectiveCapacity())
		}

		if _, ok := existingByClass[inv.ResourceClassID]; ok {
			_, err = tx.Update(&inv)
		} else {
			err = tx.Insert(&inv)
		}
		if err != nil {
			return err
		}
	}
	for classID, inv := range existingByClass {
		if _, ok := wantedByClass[classID]; !ok {
			_, err = tx.Delete(&inv)
			if err != nil {
				return err
			}
		}
	}

	rp.Generation++
	_, err = tx.Update(rp)
	return err
}

// SetTraits replaces rp's full set of traits with wanted (by name), bumping
// its generation exactly once.
func SetTraits(tx Interface, rp *ResourceProvider, wanted []string) error {
	var existing []ResourceProviderTrait
	_, err := tx.Select(&existing, `SELECT * FROM resource_provider_traits WHERE resource_provider_id = $1`, rp.ID)
	if err != nil {
		return err
	}

	wantedIDs := make([]TraitID, len(wanted))
	for i, name := range wanted {
		t, err := GetOrCreateTrait(tx, name)
		if err != nil {
			return err
		}
		wantedIDs[i] = t.ID
	}

	_, err = SetUpdate[ResourceProviderTrait, TraitID]{
		ExistingRecords: existing,
		WantedKeys:      wantedIDs,
		KeyForRecord:    func(row ResourceProviderTrait) TraitID { return row.TraitID },
		Create: func(traitID TraitID) (ResourceProviderTrait, error) {
			return ResourceProviderTrait{ResourceProviderID: rp.ID, TraitID: traitID}, nil
		},
		Update: func(*ResourceProviderTrait) error { return nil },
	}.Execute(tx)
	if err != nil {
		return err
	}

	rp.Generation++
	_, err = tx.Update(rp)
	return err
}

// SetAggregates replaces rp's full set of aggregate memberships with wanted
// (by aggregate UUID), bumping its generation exactly once.
func SetAggregates(tx Interface, rp *ResourceProvider, wanted []string) error {
	var existing []ResourceProviderAggregate
	_, err := tx.Select(&existing, `SELECT * FROM resource_provider_aggregates WHERE resource_provider_id = $1`, rp.ID)
	if err != nil {
		return err
	}

	wantedIDs := make([]AggregateID, len(wanted))
	for i, uuid := range wanted {
		a, err := GetOrCreateAggregate(tx, uuid)
		if err != nil {
			return err
		}
		wantedIDs[i] = a.ID
	}

	_, err = SetUpdate[ResourceProviderAggregate, AggregateID]{
		ExistingRecords: existing,
		WantedKeys:      wantedIDs,
		KeyForRecord:    func(row ResourceProviderAggregate) AggregateID { return row.AggregateID },
		Create: func(aggregateID AggregateID) (ResourceProviderAggregate, error) {
			return ResourceProviderAggregate{ResourceProviderID: rp.ID, AggregateID: aggregateID}, nil
		},
		Update: func(*ResourceProviderAggregate) error { return nil },
	}.Execute(tx)
	if err != nil {
		return err
	}

	rp.Generation++
	_, err = tx.Update(rp)
	return err
}

// GetConsumerByUUID loads one consumer, returning (nil, nil) if it does not
// exist yet (consumers are implicitly created on first allocation).
func GetConsumerByUUID(dbi Interface, uuid string) (*Consumer, error) {
	var c Consumer
	err := dbi.SelectOne(&c, `SELECT * FROM consumers WHERE uuid = $1`, uuid)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return &c, nil
	}
}

// ListAllocationsForConsumer loads a consumer's full allocation bundle.
func ListAllocationsForConsumer(dbi Interface, consumerID ConsumerID) ([]Allocation, error) {
	var allocs []Allocation
	_, err := dbi.Select(&allocs, `SELECT * FROM allocations WHERE consumer_id = $1`, consumerID)
	return allocs, err
}
