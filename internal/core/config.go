/******************************************************************************
*
*  Copyright 2023 SAP SE
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

package core

import (
	"time"

	"github.com/sapcc/go-bits/osext"
)

// Config bundles the environment-derived settings that the API process
// needs besides the DB connection (which is configured separately by
// internal/db.Configuration()/Init()).
type Config struct {
	ListenAddress string
	PolicyPath    string
	// SolverDeadline bounds candidate enumeration (spec §5): exceeding it
	// aborts with a Timeout APIError and returns no partial result.
	SolverDeadline time.Duration
	// DefaultCandidateLimit caps emitted AllocationRequests when the caller's
	// `limit` query parameter is absent. A caller-supplied limit replaces it,
	// even when larger.
	DefaultCandidateLimit int
}

// NewConfigFromEnvironment reads the Config from PLACEMENT_* environment
// variables, following the same osext.GetenvOrDefault idiom used by
// internal/db.Init().
func NewConfigFromEnvironment() Config {
	deadlineSecs := osext.GetenvOrDefault("PLACEMENT_SOLVER_DEADLINE_SECONDS", "5")
	deadline, err := time.ParseDuration(deadlineSecs + "s")
	if err != nil {
		deadline = 5 * time.Second
	}
	return Config{
		ListenAddress:         osext.GetenvOrDefault("PLACEMENT_API_LISTEN_ADDRESS", ":8780"),
		PolicyPath:            osext.GetenvOrDefault("PLACEMENT_API_POLICY_PATH", "/etc/placement/policy.yaml"),
		SolverDeadline:        deadline,
		DefaultCandidateLimit: 100,
	}
}
