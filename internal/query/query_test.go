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

package query_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sapcc/placement/internal/query"
	"github.com/sapcc/placement/internal/solver"
)

func TestParseSimpleResources(t *testing.T) {
	values := url.Values{"resources": {"VCPU:4,MEMORY_MB:2048"}}
	req, err := query.Parse(values, 100)
	if !assert.NoError(t, err) {
		return
	}
	if assert.Len(t, req.Groups, 1) {
		assert.Equal(t, int64(4), req.Groups[0].Resources["VCPU"])
		assert.Equal(t, int64(2048), req.Groups[0].Resources["MEMORY_MB"])
	}
	assert.Equal(t, 100, req.Limit)
	assert.Equal(t, solver.GroupPolicyNone, req.GroupPolicy)
}

func TestParseSuffixedGroupsOrderedUnsuffixedFirst(t *testing.T) {
	values := url.Values{
		"resources_B": {"VCPU:1"},
		"resources":   {"VCPU:1"},
		"resources_A": {"VCPU:1"},
	}
	req, err := query.Parse(values, 10)
	if !assert.NoError(t, err) {
		return
	}
	if assert.Len(t, req.Groups, 3) {
		assert.Equal(t, "", req.Groups[0].Suffix)
		assert.Equal(t, "_A", req.Groups[1].Suffix)
		assert.Equal(t, "_B", req.Groups[2].Suffix)
	}
}

func TestParseRequiredForbiddenAndAnyOf(t *testing.T) {
	values := url.Values{
		"resources": {"VCPU:1"},
		"required":  {"HW_CPU_X86_AVX2,!CUSTOM_GOLD,in:a&b"},
	}
	req, err := query.Parse(values, 10)
	if !assert.NoError(t, err) {
		return
	}
	g := req.Groups[0]
	assert.Equal(t, []string{"HW_CPU_X86_AVX2"}, g.Traits.Required)
	assert.Equal(t, []string{"CUSTOM_GOLD"}, g.Traits.Forbidden)
	assert.Equal(t, [][]string{{"a", "b"}}, g.Traits.AnyOf)
}

func TestParseMemberOf(t *testing.T) {
	values := url.Values{
		"resources": {"VCPU:1"},
		"member_of": {"agg-1,agg-2&agg-3"},
	}
	req, err := query.Parse(values, 10)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, [][]string{{"agg-1"}, {"agg-2", "agg-3"}}, req.Groups[0].Aggregates.AnyOf)
}

func TestParseSameSubtreeAndGroupPolicy(t *testing.T) {
	values := url.Values{
		"resources":    {"VCPU:1"},
		"same_subtree": {"_A,_B"},
		"group_policy": {"isolate"},
	}
	req, err := query.Parse(values, 10)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, [][]string{{"_A", "_B"}}, req.SameSubtree)
	assert.Equal(t, solver.GroupPolicyIsolate, req.GroupPolicy)
}

func TestParseLimitOverridesDefault(t *testing.T) {
	values := url.Values{"resources": {"VCPU:1"}, "limit": {"5"}}
	req, err := query.Parse(values, 100)
	assert.NoError(t, err)
	assert.Equal(t, 5, req.Limit)
}

func TestParseRejectsInvalidLimit(t *testing.T) {
	values := url.Values{"resources": {"VCPU:1"}, "limit": {"0"}}
	_, err := query.Parse(values, 100)
	assert.Error(t, err)

	values["limit"] = []string{"not-a-number"}
	_, err = query.Parse(values, 100)
	assert.Error(t, err)
}

func TestParseRejectsMalformedResourceEntry(t *testing.T) {
	_, err := query.Parse(url.Values{"resources": {"VCPU"}}, 10)
	assert.Error(t, err)

	_, err = query.Parse(url.Values{"resources": {"VCPU:-1"}}, 10)
	assert.Error(t, err)
}

func TestParseRejectsInvalidGroupPolicy(t *testing.T) {
	values := url.Values{"resources": {"VCPU:1"}, "group_policy": {"bogus"}}
	_, err := query.Parse(values, 10)
	assert.Error(t, err)
}

func TestParseRejectsEmptyAnyOfGroup(t *testing.T) {
	values := url.Values{"resources": {"VCPU:1"}, "required": {"in:"}}
	_, err := query.Parse(values, 10)
	assert.Error(t, err)
}
