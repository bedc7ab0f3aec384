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

// Package query parses the allocation-candidate query language (spec §6)
// into a solver.Request: suffixed resource/trait/aggregate groups, the
// `in:`/`&`/`,` trait grammar, same_subtree clauses, group_policy, and limit.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/sapcc/placement/internal/core"
	"github.com/sapcc/placement/internal/index"
	"github.com/sapcc/placement/internal/solver"
)

// Parse builds a solver.Request from raw candidate-request query parameters.
// defaultLimit is used when the caller did not supply `limit`.
func Parse(values url.Values, defaultLimit int) (solver.Request, error) {
	groups := make(map[string]*solver.ResourceGroup)

	groupFor := func(suffix string) *solver.ResourceGroup {
		g, ok := groups[suffix]
		if !ok {
			g = &solver.ResourceGroup{Suffix: suffix, Resources: make(map[string]int64)}
			groups[suffix] = g
		}
		return g
	}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		raw := vals[0]
		switch {
		case key == "resources" || strings.HasPrefix(key, "resources_"):
			err := parseResources(groupFor(suffixOf(key, "resources")), raw)
			if err != nil {
				return solver.Request{}, err
			}
		case key == "required" || strings.HasPrefix(key, "required_"):
			filter, err := parseTraitClause(raw)
			if err != nil {
				return solver.Request{}, err
			}
			g := groupFor(suffixOf(key, "required"))
			g.Traits.Required = append(g.Traits.Required, filter.Required...)
			g.Traits.Forbidden = append(g.Traits.Forbidden, filter.Forbidden...)
			g.Traits.AnyOf = append(g.Traits.AnyOf, filter.AnyOf...)
		case key == "member_of" || strings.HasPrefix(key, "member_of_"):
			filter, err := parseAggregateClause(raw)
			if err != nil {
				return solver.Request{}, err
			}
			g := groupFor(suffixOf(key, "member_of"))
			g.Aggregates.AnyOf = append(g.Aggregates.AnyOf, filter.AnyOf...)
		}
	}

	req := solver.Request{GroupPolicy: solver.GroupPolicyNone, Limit: defaultLimit}
	for _, suffix := range sortedKeys(groups) {
		req.Groups = append(req.Groups, *groups[suffix])
	}

	if raw := values.Get("group_policy"); raw != "" {
		if raw != solver.GroupPolicyNone && raw != solver.GroupPolicyIsolate {
			return solver.Request{}, core.BadRequest(core.CodeQueryBadValue, "group_policy must be 'none' or 'isolate'")
		}
		req.GroupPolicy = raw
	}

	for _, raw := range values["same_subtree"] {
		parts := strings.Split(raw, ",")
		req.SameSubtree = append(req.SameSubtree, parts)
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return solver.Request{}, core.BadRequest(core.CodeQueryBadValue, "limit must be a positive integer")
		}
		req.Limit = n
	}

	return req, nil
}

// suffixOf returns the suffix of a query key given its unsuffixed prefix,
// e.g. suffixOf("resources_COMPUTE", "resources") == "_COMPUTE", and
// suffixOf("resources", "resources") == "".
func suffixOf(key, prefix string) string {
	return strings.TrimPrefix(key, prefix)
}

func sortedKeys(groups map[string]*solver.ResourceGroup) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	// Deterministic order: unsuffixed group first, then lexicographic.
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if less(keys[j], keys[i]) {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

func less(a, b string) bool {
	if a == "" {
		return true
	}
	if b == "" {
		return false
	}
	return a < b
}

// parseResources parses `resources[_S]=RC:N,RC:N,...` (spec §6).
func parseResources(g *solver.ResourceGroup, raw string) error {
	if raw == "" {
		return nil
	}
	for _, part := range strings.Split(raw, ",") {
		rc, amountStr, ok := strings.Cut(part, ":")
		if !ok || rc == "" || amountStr == "" {
			return core.BadRequest(core.CodeQueryBadValue, "resources entry must be RC:N, got "+part)
		}
		amount, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil || amount <= 0 {
			return core.BadRequest(core.CodeQueryBadValue, "resources amount must be a positive integer, got "+amountStr)
		}
		g.Resources[rc] = amount
	}
	return nil
}

// parseTraitClause parses `required[_S]=T,!T,...` and the v1.39+
// `T1,T2&T3,!T4` / `in:a,b` any-of grammar (spec §6). Each comma-separated
// top-level entry is either a bare trait (required), a `!`-prefixed trait
// (forbidden), or an `in:`-prefixed, `&`-joined any-of group.
func parseTraitClause(raw string) (index.TraitFilter, error) {
	var filter index.TraitFilter
	if raw == "" {
		return filter, nil
	}
	for _, entry := range splitTopLevel(raw) {
		switch {
		case strings.HasPrefix(entry, "in:"):
			group := strings.Split(strings.TrimPrefix(entry, "in:"), "&")
			group = trimAll(group)
			if len(group) == 0 || containsEmpty(group) {
				return index.TraitFilter{}, core.BadRequest(core.CodeQueryBadValue, "in: any-of group must not be empty, got "+entry)
			}
			filter.AnyOf = append(filter.AnyOf, group)
		case strings.HasPrefix(entry, "!"):
			name := strings.TrimPrefix(entry, "!")
			if name == "" {
				return index.TraitFilter{}, core.BadRequest(core.CodeQueryMissingValue, "forbidden trait name is empty")
			}
			filter.Forbidden = append(filter.Forbidden, name)
		default:
			if entry == "" {
				return index.TraitFilter{}, core.BadRequest(core.CodeQueryMissingValue, "trait name is empty")
			}
			if strings.Contains(entry, "&") {
				group := trimAll(strings.Split(entry, "&"))
				filter.AnyOf = append(filter.AnyOf, group)
			} else {
				filter.Required = append(filter.Required, entry)
			}
		}
	}
	return filter, nil
}

// parseAggregateClause parses `member_of[_S]=agg,agg&in:agg,agg` (spec §6):
// an AND of OR-groups of aggregate UUIDs.
func parseAggregateClause(raw string) (index.AggregateFilter, error) {
	var filter index.AggregateFilter
	if raw == "" {
		return filter, nil
	}
	for _, entry := range splitTopLevel(raw) {
		entry = strings.TrimPrefix(entry, "in:")
		group := trimAll(strings.Split(entry, "&"))
		if len(group) == 0 || containsEmpty(group) {
			return index.AggregateFilter{}, core.BadRequest(core.CodeQueryBadValue, "member_of group must not be empty, got "+entry)
		}
		filter.AnyOf = append(filter.AnyOf, group)
	}
	return filter, nil
}

// splitTopLevel splits on commas that are not already consumed as part of an
// `in:`-introduced any-of group, i.e. every top-level comma in the raw value
// (the `in:` grammar only ever uses `&` within a group, never nested commas).
func splitTopLevel(raw string) []string {
	return trimAll(strings.Split(raw, ","))
}

func trimAll(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func containsEmpty(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return true
		}
	}
	return false
}
