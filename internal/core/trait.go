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

// TraitName is a symbolic trait string from the global trait namespace
// (spec §3). Standard traits carry one of the reserved prefixes below;
// everything else must start with CUSTOM_.
type TraitName string

var standardTraitPrefixes = []string{
	"HW_",
	"STORAGE_",
	"COMPUTE_",
	"NET_",
	"DISK_",
	"CUSTOM_",
}

var customTraitPattern = regexp.MustCompile(`^CUSTOM_[A-Z0-9_]+$`)

// IsValid reports whether this trait name is well-formed: either it carries
// one of the standard namespace prefixes, or it is a CUSTOM_ trait matching
// the conventional [A-Z0-9_]+ shape.
func (t TraitName) IsValid() bool {
	s := string(t)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "CUSTOM_") {
		return customTraitPattern.MatchString(s)
	}
	for _, prefix := range standardTraitPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// IsCustom reports whether this is a deployment-defined trait rather than a
// standard one.
func (t TraitName) IsCustom() bool {
	return strings.HasPrefix(string(t), "CUSTOM_")
}
