/*******************************************************************************
*
* Copyright 2017-2020 SAP SE
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

package db

import (
	"github.com/go-gorp/gorp/v3"
)

// ResourceProvider contains a record from the `resource_providers` table. RPs
// form a forest: ParentID is nil for roots, and RootID is always set (equal
// to ID for roots) so that "same root" checks never need to walk the chain.
type ResourceProvider struct {
	ID         ResourceProviderID  `db:"id"`
	UUID       string              `db:"uuid"`
	Name       string              `db:"name"`
	ParentID   *ResourceProviderID `db:"parent_id"`
	RootID     ResourceProviderID  `db:"root_id"`
	Generation int64               `db:"generation"`
}

// ResourceClass contains a record from the `resource_classes` table.
type ResourceClass struct {
	ID   ResourceClassID `db:"id"`
	Name string          `db:"name"`
}

// Inventory contains a record from the `inventories` table: the capacity
// rule for one (resource provider, resource class) pair (spec §3).
type Inventory struct {
	ResourceProviderID ResourceProviderID `db:"resource_provider_id"`
	ResourceClassID    ResourceClassID    `db:"resource_class_id"`
	Total              int64              `db:"total"`
	Reserved           int64              `db:"reserved"`
	MinUnit            int64              `db:"min_unit"`
	MaxUnit            int64              `db:"max_unit"`
	StepSize           int64              `db:"step_size"`
	AllocationRatio    float64            `db:"allocation_ratio"`
}

// EffectiveCapacity is floor(total * allocation_ratio) - reserved (spec §3).
func (inv Inventory) EffectiveCapacity() int64 {
	capacity := int64(float64(inv.Total) * inv.AllocationRatio)
	capacity -= inv.Reserved
	if capacity < 0 {
		return 0
	}
	return capacity
}

// IsAssignable reports whether the amount n may be drawn from this inventory
// in isolation (spec §3): min/max/step bounds, ignoring current usage.
func (inv Inventory) IsAssignable(n int64) bool {
	if n < inv.MinUnit || n > inv.MaxUnit {
		return false
	}
	if inv.StepSize <= 0 {
		return true
	}
	return (n-inv.MinUnit)%inv.StepSize == 0
}

// Trait contains a record from the `traits` table.
type Trait struct {
	ID   TraitID `db:"id"`
	Name string  `db:"name"`
}

// ResourceProviderTrait is a row in the `resource_provider_traits` join
// table: one RP carries one trait.
type ResourceProviderTrait struct {
	ResourceProviderID ResourceProviderID `db:"resource_provider_id"`
	TraitID            TraitID            `db:"trait_id"`
}

// Aggregate contains a record from the `aggregates` table.
type Aggregate struct {
	ID   AggregateID `db:"id"`
	UUID string      `db:"uuid"`
}

// ResourceProviderAggregate is a row in the `resource_provider_aggregates`
// join table: one RP is a member of one aggregate.
type ResourceProviderAggregate struct {
	ResourceProviderID ResourceProviderID `db:"resource_provider_id"`
	AggregateID        AggregateID        `db:"aggregate_id"`
}

// Consumer contains a record from the `consumers` table. Consumers are
// implicitly created on first allocation and removed once their bundle is
// empty (spec §3 Lifecycles).
type Consumer struct {
	ID           ConsumerID `db:"id"`
	UUID         string     `db:"uuid"`
	ProjectID    string     `db:"project_id"`
	UserID       string     `db:"user_id"`
	ConsumerType string     `db:"consumer_type"` // "" if not set by the caller
	Generation   int64      `db:"generation"`
}

// Allocation contains a record from the `allocations` table: one consumer's
// draw of `used` units of one resource class from one resource provider.
type Allocation struct {
	ID                 AllocationID       `db:"id"`
	ConsumerID         ConsumerID         `db:"consumer_id"`
	ResourceProviderID ResourceProviderID `db:"resource_provider_id"`
	ResourceClassID    ResourceClassID    `db:"resource_class_id"`
	Used               int64              `db:"used"`
}

// initGorp is used by Init() to setup the ORM part of the database
// connection.
func initGorp(db *gorp.DbMap) {
	db.AddTableWithName(ResourceProvider{}, "resource_providers").SetKeys(true, "id")
	db.AddTableWithName(ResourceClass{}, "resource_classes").SetKeys(true, "id")
	db.AddTableWithName(Inventory{}, "inventories").SetKeys(false, "resource_provider_id", "resource_class_id")
	db.AddTableWithName(Trait{}, "traits").SetKeys(true, "id")
	db.AddTableWithName(ResourceProviderTrait{}, "resource_provider_traits").SetKeys(false, "resource_provider_id", "trait_id")
	db.AddTableWithName(Aggregate{}, "aggregates").SetKeys(true, "id")
	db.AddTableWithName(ResourceProviderAggregate{}, "resource_provider_aggregates").SetKeys(false, "resource_provider_id", "aggregate_id")
	db.AddTableWithName(Consumer{}, "consumers").SetKeys(true, "id")
	db.AddTableWithName(Allocation{}, "allocations").SetKeys(true, "id")
}
