/*******************************************************************************
*
* Copyright 2017 SAP SE
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

package test

import (
	"strings"

	policy "github.com/databus23/goslo.policy"
)

// PolicyEnforcer is a gopherpolicy.Enforcer implementation for API tests. It
// grants or denies each rule by its last colon-separated segment (e.g.
// "placement:resource_providers:create" is granted if AllowCreate is set),
// mirroring the rule names AddTo checks in internal/api.
type PolicyEnforcer struct {
	AllowList    bool
	AllowShow    bool
	AllowCreate  bool
	AllowUpdate  bool
	AllowDelete  bool
	RejectAction string
}

// Enforce implements the gopherpolicy.Enforcer interface.
func (e *PolicyEnforcer) Enforce(rule string, ctx policy.Context) bool {
	fields := strings.Split(rule, ":")
	action := fields[len(fields)-1]
	if e.RejectAction == action {
		return false
	}
	switch action {
	case "list":
		return e.AllowList
	case "show":
		return e.AllowShow
	case "create":
		return e.AllowCreate
	case "update":
		return e.AllowUpdate
	case "delete":
		return e.AllowDelete
	default:
		return true
	}
}

// AllowAll returns a PolicyEnforcer that grants every action, the default
// posture for tests that are not specifically exercising authorization.
func AllowAll() *PolicyEnforcer {
	return &PolicyEnforcer{AllowList: true, AllowShow: true, AllowCreate: true, AllowUpdate: true, AllowDelete: true}
}
