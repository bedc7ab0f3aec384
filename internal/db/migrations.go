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

var sqlMigrations = map[string]string{
	"001_initial_schema.down.sql": `
		DROP TABLE allocations;
		DROP TABLE consumers;
		DROP TABLE resource_provider_aggregates;
		DROP TABLE aggregates;
		DROP TABLE resource_provider_traits;
		DROP TABLE traits;
		DROP TABLE inventories;
		DROP TABLE resource_classes;
		DROP TABLE resource_providers;
	`,
	"001_initial_schema.up.sql": `
		CREATE TABLE resource_providers (
			id          BIGSERIAL  NOT NULL PRIMARY KEY,
			uuid        TEXT       NOT NULL UNIQUE,
			name        TEXT       NOT NULL UNIQUE,
			parent_id   BIGINT     DEFAULT NULL REFERENCES resource_providers ON DELETE RESTRICT,
			root_id     BIGINT     NOT NULL REFERENCES resource_providers ON DELETE RESTRICT,
			generation  BIGINT     NOT NULL DEFAULT 0
		);
		CREATE INDEX resource_providers_parent_idx ON resource_providers (parent_id);
		CREATE INDEX resource_providers_root_idx ON resource_providers (root_id);

		CREATE TABLE resource_classes (
			id    BIGSERIAL  NOT NULL PRIMARY KEY,
			name  TEXT       NOT NULL UNIQUE
		);

		CREATE TABLE inventories (
			resource_provider_id  BIGINT   NOT NULL REFERENCES resource_providers ON DELETE CASCADE,
			resource_class_id    BIGINT   NOT NULL REFERENCES resource_classes ON DELETE RESTRICT,
			total                BIGINT   NOT NULL,
			reserved             BIGINT   NOT NULL DEFAULT 0,
			min_unit             BIGINT   NOT NULL DEFAULT 1,
			max_unit             BIGINT   NOT NULL,
			step_size            BIGINT   NOT NULL DEFAULT 1,
			allocation_ratio     REAL     NOT NULL DEFAULT 1.0,
			PRIMARY KEY (resource_provider_id, resource_class_id)
		);

		CREATE TABLE traits (
			id    BIGSERIAL  NOT NULL PRIMARY KEY,
			name  TEXT       NOT NULL UNIQUE
		);

		CREATE TABLE resource_provider_traits (
			resource_provider_id  BIGINT  NOT NULL REFERENCES resource_providers ON DELETE CASCADE,
			trait_id              BIGINT  NOT NULL REFERENCES traits ON DELETE RESTRICT,
			PRIMARY KEY (resource_provider_id, trait_id)
		);
		CREATE INDEX resource_provider_traits_trait_idx ON resource_provider_traits (trait_id);

		CREATE TABLE aggregates (
			id    BIGSERIAL  NOT NULL PRIMARY KEY,
			uuid  TEXT       NOT NULL UNIQUE
		);

		CREATE TABLE resource_provider_aggregates (
			resource_provider_id  BIGINT  NOT NULL REFERENCES resource_providers ON DELETE CASCADE,
			aggregate_id          BIGINT  NOT NULL REFERENCES aggregates ON DELETE RESTRICT,
			PRIMARY KEY (resource_provider_id, aggregate_id)
		);
		CREATE INDEX resource_provider_aggregates_aggregate_idx ON resource_provider_aggregates (aggregate_id);

		CREATE TABLE consumers (
			id             BIGSERIAL  NOT NULL PRIMARY KEY,
			uuid           TEXT       NOT NULL UNIQUE,
			project_id     TEXT       NOT NULL DEFAULT '',
			user_id        TEXT       NOT NULL DEFAULT '',
			consumer_type  TEXT       NOT NULL DEFAULT '',
			generation     BIGINT     NOT NULL DEFAULT 0
		);

		CREATE TABLE allocations (
			id                    BIGSERIAL  NOT NULL PRIMARY KEY,
			consumer_id           BIGINT     NOT NULL REFERENCES consumers ON DELETE CASCADE,
			resource_provider_id  BIGINT     NOT NULL REFERENCES resource_providers ON DELETE RESTRICT,
			resource_class_id     BIGINT     NOT NULL REFERENCES resource_classes ON DELETE RESTRICT,
			used                  BIGINT     NOT NULL CHECK (used > 0),
			UNIQUE (consumer_id, resource_provider_id, resource_class_id)
		);
		CREATE INDEX allocations_rp_rc_idx ON allocations (resource_provider_id, resource_class_id);
	`,
}
