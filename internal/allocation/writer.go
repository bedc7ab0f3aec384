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

// Package allocation implements the allocation writer (spec §4.G): the
// transactional, multi-consumer bundle replace that backs PUT/POST/DELETE
// /allocations. Callers open the transaction, call Apply, and on success
// commit and emit whatever audit event their transport layer requires — this
// package owns only the data-consistency contract, not HTTP or auditing.
package allocation

import (
	"fmt"

	"github.com/sapcc/placement/internal/core"
	"github.com/sapcc/placement/internal/db"
)

// ProviderAllocation is the desired allocation of one consumer against one
// resource provider.
type ProviderAllocation struct {
	ProviderGeneration *int64 // nil: tolerate any change since the solver's read (spec §4.G step 4)
	Resources          map[string]int64
}

// ConsumerBundle is the desired full allocation bundle for one consumer
// (spec §3 "allocation bundle").
type ConsumerBundle struct {
	ConsumerGeneration *int64 // nil: no CAS requested
	ProjectID          string
	UserID             string
	ConsumerType       string
	Allocations        map[string]ProviderAllocation // resource provider UUID -> allocation
}

// WriteRequest bundles every consumer touched by one PUT/POST/DELETE call.
// A PUT of a single consumer is the one-entry case; POST's atomic swap is
// the multi-entry case; DELETE is a bundle with empty Allocations.
type WriteRequest struct {
	Bundles map[string]ConsumerBundle // consumer UUID -> desired bundle
}

// ConsumerResult describes one consumer's state after a successful Apply.
type ConsumerResult struct {
	UUID       string
	Generation int64
	Removed    bool // true if the bundle went empty and the consumer record was deleted
}

// WriteResult is returned by a successful Apply.
type WriteResult struct {
	Consumers []ConsumerResult
	Providers []ProviderResult
}

// ProviderResult describes one resource provider's generation after a
// successful Apply.
type ProviderResult struct {
	UUID       string
	Generation int64
}

// Apply executes the allocation writer's contract (spec §4.G) inside tx: it
// loads and CASes every named consumer, computes the net delta per (rp, rc),
// rechecks capacity, CASes every touched provider, and applies the bundle
// swap. The caller is responsible for tx.Commit() on success and
// sqlext.RollbackUnlessCommitted(tx) via defer.
func Apply(tx db.Interface, req WriteRequest) (*WriteResult, error) {
	if len(req.Bundles) == 0 {
		return &WriteResult{}, nil
	}

	consumers, err := loadOrCreateConsumers(tx, req)
	if err != nil {
		return nil, err
	}

	delta, err := netDeltaByProviderAndClass(tx, req, consumers)
	if err != nil {
		return nil, err
	}

	providers, err := loadTouchedProviders(tx, delta, req)
	if err != nil {
		return nil, err
	}

	err = checkCapacity(tx, delta, providers)
	if err != nil {
		return nil, err
	}

	err = checkProviderGenerations(req, providers)
	if err != nil {
		return nil, err
	}

	return applyBundles(tx, req, consumers, providers)
}

func loadOrCreateConsumers(tx db.Interface, req WriteRequest) (map[string]*db.Consumer, error) {
	consumers := make(map[string]*db.Consumer, len(req.Bundles))
	for uuid, bundle := range req.Bundles {
		c, err := db.GetConsumerByUUID(tx, uuid)
		if err != nil {
			return nil, err
		}
		if c == nil {
			if len(bundle.Allocations) == 0 {
				continue // deleting a bundle that never existed: no-op
			}
			c = &db.Consumer{
				UUID:         uuid,
				ProjectID:    bundle.ProjectID,
				UserID:       bundle.UserID,
				ConsumerType: bundle.ConsumerType,
			}
			err = tx.Insert(c)
			if err != nil {
				return nil, err
			}
		} else if bundle.ConsumerGeneration != nil {
			err = db.CheckGeneration("consumer", uuid, c.Generation, *bundle.ConsumerGeneration)
			if err != nil {
				return nil, err
			}
		}
		consumers[uuid] = c
	}
	return consumers, nil
}

type providerClassKey struct {
	ProviderUUID string
	ClassName    string
}

// netDeltaByProviderAndClass computes, for every (provider, class) touched by
// this write, how much the total allocated amount changes (spec §4.G step 2).
func netDeltaByProviderAndClass(tx db.Interface, req WriteRequest, consumers map[string]*db.Consumer) (map[providerClassKey]int64, error) {
	delta := make(map[providerClassKey]int64)

	for uuid, c := range consumers {
		existing, err := db.ListAllocationsForConsumer(tx, c.ID)
		if err != nil {
			return nil, err
		}
		oldByKey, err := oldAllocationsByProviderUUIDAndClassName(tx, existing)
		if err != nil {
			return nil, err
		}
		for key, amount := range oldByKey {
			delta[key] -= amount
		}

		for rpUUID, alloc := range req.Bundles[uuid].Allocations {
			for rcName, amount := range alloc.Resources {
				if amount <= 0 {
					return nil, core.BadRequest(core.CodeQueryBadValue,
						fmt.Sprintf("allocation amount for %s/%s must be positive", rpUUID, rcName))
				}
				delta[providerClassKey{rpUUID, rcName}] += amount
			}
		}
	}
	return delta, nil
}

func oldAllocationsByProviderUUIDAndClassName(tx db.Interface, existing []db.Allocation) (map[providerClassKey]int64, error) {
	out := make(map[providerClassKey]int64, len(existing))
	if len(existing) == 0 {
		return out, nil
	}

	providersByID, err := db.BuildIndexOfDBResult(tx,
		func(rp db.ResourceProvider) db.ResourceProviderID { return rp.ID },
		`SELECT * FROM resource_providers`)
	if err != nil {
		return nil, err
	}
	classesByID, err := db.BuildIndexOfDBResult(tx,
		func(rc db.ResourceClass) db.ResourceClassID { return rc.ID },
		`SELECT * FROM resource_classes`)
	if err != nil {
		return nil, err
	}

	for _, a := range existing {
		rp, ok := providersByID[a.ResourceProviderID]
		if !ok {
			return nil, core.InvariantViolationf("allocation references missing resource provider %d", a.ResourceProviderID)
		}
		rc, ok := classesByID[a.ResourceClassID]
		if !ok {
			return nil, core.InvariantViolationf("allocation references missing resource class %d", a.ResourceClassID)
		}
		out[providerClassKey{rp.UUID, rc.Name}] += a.Used
	}
	return out, nil
}

func loadTouchedProviders(tx db.Interface, delta map[providerClassKey]int64, req WriteRequest) (map[string]*db.ResourceProvider, error) {
	providers := make(map[string]*db.ResourceProvider)
	for key := range delta {
		if _, ok := providers[key.ProviderUUID]; ok {
			continue
		}
		rp, err := db.GetResourceProviderByUUID(tx, key.ProviderUUID)
		if err != nil {
			return nil, err
		}
		providers[key.ProviderUUID] = rp
	}
	// also touch providers that are only mentioned with a requested
	// generation but had no net delta (a replace-with-same-amount no-op
	// still asserts the caller's observed generation).
	for _, bundle := range req.Bundles {
		for rpUUID := range bundle.Allocations {
			if _, ok := providers[rpUUID]; !ok {
				rp, err := db.GetResourceProviderByUUID(tx, rpUUID)
				if err != nil {
					return nil, err
				}
				providers[rpUUID] = rp
			}
		}
	}
	return providers, nil
}

func checkCapacity(tx db.Interface, delta map[providerClassKey]int64, providers map[string]*db.ResourceProvider) error {
	for key, d := range delta {
		if d == 0 {
			continue
		}
		rp := providers[key.ProviderUUID]
		var inv db.Inventory
		rc, err := db.GetOrCreateResourceClass(tx, key.ClassName)
		if err != nil {
			return err
		}
		err = tx.SelectOne(&inv, `SELECT * FROM inventories WHERE resource_provider_id = $1 AND resource_class_id = $2`, rp.ID, rc.ID)
		if err != nil {
			return core.InvariantViolationf("allocation references inventory %s/%s with no matching inventory row", rp.UUID, key.ClassName)
		}

		currentTotal, err := tx.SelectInt(`SELECT COALESCE(SUM(used), 0) FROM allocations WHERE resource_provider_id = $1 AND resource_class_id = $2`, rp.ID, rc.ID)
		if err != nil {
			return err
		}
		after := currentTotal + d
		if after > inv.EffectiveCapacity() {
			return core.Conflict(core.CodeInventoryInUse,
				fmt.Sprintf("allocating %s/%s would leave %d units allocated over a capacity of %d", rp.UUID, key.ClassName, after, inv.EffectiveCapacity()))
		}
	}
	return nil
}

func checkProviderGenerations(req WriteRequest, providers map[string]*db.ResourceProvider) error {
	for _, bundle := range req.Bundles {
		for rpUUID, alloc := range bundle.Allocations {
			if alloc.ProviderGeneration == nil {
				continue
			}
			rp := providers[rpUUID]
			err := db.CheckGeneration("resource provider", rpUUID, rp.Generation, *alloc.ProviderGeneration)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func applyBundles(tx db.Interface, req WriteRequest, consumers map[string]*db.Consumer, providers map[string]*db.ResourceProvider) (*WriteResult, error) {
	result := &WriteResult{}

	for uuid, bundle := range req.Bundles {
		c, ok := consumers[uuid]
		if !ok {
			continue // delete of a consumer that never existed
		}

		existing, err := db.ListAllocationsForConsumer(tx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range existing {
			a := a
			_, err = tx.Delete(&a)
			if err != nil {
				return nil, err
			}
		}

		for rpUUID, alloc := range bundle.Allocations {
			rp := providers[rpUUID]
			for rcName, amount := range alloc.Resources {
				rc, err := db.GetOrCreateResourceClass(tx, rcName)
				if err != nil {
					return nil, err
				}
				row := db.Allocation{
					ConsumerID:         c.ID,
					ResourceProviderID: rp.ID,
					ResourceClassID:    rc.ID,
					Used:               amount,
				}
				err = tx.Insert(&row)
				if err != nil {
					return nil, err
				}
			}
		}

		if len(bundle.Allocations) == 0 {
			_, err = tx.Delete(c)
			if err != nil {
				return nil, err
			}
			result.Consumers = append(result.Consumers, ConsumerResult{UUID: uuid, Removed: true})
		} else {
			c.Generation++
			_, err = tx.Update(c)
			if err != nil {
				return nil, err
			}
			result.Consumers = append(result.Consumers, ConsumerResult{UUID: uuid, Generation: c.Generation})
		}
	}

	// providers already covers every (provider, class) pair with a nonzero net
	// delta (loadTouchedProviders/netDeltaByProviderAndClass), including a
	// provider that only lost allocations in this write — bumping generations
	// off the caller's new bundle alone would miss that case.
	for rpUUID, rp := range providers {
		rp.Generation++
		_, err := tx.Update(rp)
		if err != nil {
			return nil, err
		}
		result.Providers = append(result.Providers, ProviderResult{UUID: rpUUID, Generation: rp.Generation})
	}

	return result, nil
}
