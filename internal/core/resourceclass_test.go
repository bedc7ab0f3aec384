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

package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sapcc/placement/internal/core"
)

func TestResourceClassNameIsValid(t *testing.T) {
	assert.True(t, core.ResourceClassName("VCPU").IsValid())
	assert.True(t, core.ResourceClassName("MEMORY_MB").IsValid())
	assert.True(t, core.ResourceClassName("CUSTOM_FPGA").IsValid())
	assert.False(t, core.ResourceClassName("").IsValid())
	assert.False(t, core.ResourceClassName("vcpu").IsValid())
	assert.False(t, core.ResourceClassName("VCPU-2").IsValid())
}

func TestResourceClassNameIsCustom(t *testing.T) {
	assert.True(t, core.ResourceClassName("CUSTOM_FPGA").IsCustom())
	assert.False(t, core.ResourceClassName("VCPU").IsCustom())
}
