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
	"regexp"
	"strings"
)

// ResourceClassName is a symbolic resource class string (spec §3), e.g.
// "VCPU", "MEMORY_MB", or a custom "CUSTOM_FPGA".
type ResourceClassName string

var resourceClassPattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// IsValid reports whether this resource class name is well-formed.
func (rc ResourceClassName) IsValid() bool {
	s := string(rc)
	return s != "" && resourceClassPattern.MatchString(s)
}

// IsCustom reports whether this is a deployment-defined resource class.
func (rc ResourceClassName) IsCustom() bool {
	return strings.HasPrefix(string(rc), "CUSTOM_")
}
