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

// Package capacity implements the capacity view (spec §4.C): for a resource
// class and a candidate amount, which providers can still give out that much,
// given their inventory rules and what is already allocated. Like package
// index, a View is built once per request from rows the caller already
// fetched, then queried many times by the solver.
package capacity

import (
	"github.com/sapcc/placement/internal/db"
)

type providerClass struct {
	Provider db.ResourceProviderID
	Class    db.ResourceClassID
}

// View is a per-request snapshot of inventories and their current usage.
type View struct {
	inventories map[providerClass]db.Inventory
	used        map[providerClass]int64
}

// UsageRow is one (provider, class) -> currently-allocated-total pair, as
// loaded with `SELECT resource_provider_id, resource_class_id, SUM(used) ...
// GROUP BY 1, 2`.
type UsageRow struct {
	Provider db.ResourceProviderID
	Class    db.ResourceClassID
	Used     int64
}

// BuildView assembles a View from the full set of inventory rows relevant to
// a request, plus the matching usage aggregation.
func BuildView(inventories []db.Inventory, usage []UsageRow) *View {
	v := &View{
		inventories: make(map[providerClass]db.Inventory, len(inventories)),
		used:        make(map[providerClass]int64, len(usage)),
	}
	for _, inv := range inventories {
		v.inventories[providerClass{inv.ResourceProviderID, inv.ResourceClassID}] = inv
	}
	for _, row := range usage {
		v.used[providerClass{row.Provider, row.Class}] = row.Used
	}
	return v
}

// HasInventory reports whether provider carries any inventory record at all
// for class. Providers with no such record never match a group that asks for
// that class (spec §3: "a resource class with no inventory row behaves as if
// its capacity were zero").
func (v *View) HasInventory(provider db.ResourceProviderID, class db.ResourceClassID) bool {
	_, ok := v.inventories[providerClass{provider, class}]
	return ok
}

// Used returns how many units of class are currently allocated out of
// provider.
func (v *View) Used(provider db.ResourceProviderID, class db.ResourceClassID) int64 {
	return v.used[providerClass{provider, class}]
}

// Remaining returns how many units of class provider could still give out,
// ignoring min/max/step constraints on any single request.
func (v *View) Remaining(provider db.ResourceProviderID, class db.ResourceClassID) int64 {
	inv, ok := v.inventories[providerClass{provider, class}]
	if !ok {
		return 0
	}
	remaining := inv.EffectiveCapacity() - v.Used(provider, class)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanAllocate reports whether provider could accept a single allocation of
// amount units of class, honoring min_unit/max_unit/step_size as well as
// remaining capacity (spec §3, §4.C).
func (v *View) CanAllocate(provider db.ResourceProviderID, class db.ResourceClassID, amount int64) bool {
	inv, ok := v.inventories[providerClass{provider, class}]
	if !ok {
		return false
	}
	if !inv.IsAssignable(amount) {
		return false
	}
	return amount <= v.Remaining(provider, class)
}
