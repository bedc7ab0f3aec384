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

package db

// ResourceProviderID is an ID into the resource_providers table. This typedef
// is used to distinguish these IDs from IDs of other tables or raw int64
// values.
type ResourceProviderID int64

// ResourceClassID is an ID into the resource_classes table.
type ResourceClassID int64

// TraitID is an ID into the traits table.
type TraitID int64

// AggregateID is an ID into the aggregates table.
type AggregateID int64

// ConsumerID is an ID into the consumers table.
type ConsumerID int64

// AllocationID is an ID into the allocations table.
type AllocationID int64
