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

package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sapcc/placement/internal/db"
)

// root(1) -> child(2) -> grandchild(3); unrelated root(4)
func testTree() *Tree {
	one := db.ResourceProviderID(1)
	two := db.ResourceProviderID(2)
	return NewTree([]db.ResourceProvider{
		{ID: 1, UUID: "uuid-1", RootID: 1, ParentID: nil},
		{ID: 2, UUID: "uuid-2", RootID: 1, ParentID: &one},
		{ID: 3, UUID: "uuid-3", RootID: 1, ParentID: &two},
		{ID: 4, UUID: "uuid-4", RootID: 4, ParentID: nil},
	})
}

func TestTreeRootOf(t *testing.T) {
	tree := testTree()
	assert.Equal(t, db.ResourceProviderID(1), tree.RootOf(3))
	assert.Equal(t, db.ResourceProviderID(4), tree.RootOf(4))
}

func TestTreeAncestorsInclusive(t *testing.T) {
	tree := testTree()
	assert.Equal(t, []db.ResourceProviderID{3, 2, 1}, tree.AncestorsInclusive(3))
	assert.Equal(t, []db.ResourceProviderID{1}, tree.AncestorsInclusive(1))
}

func TestTreeIsInSubtree(t *testing.T) {
	tree := testTree()
	assert.True(t, tree.IsInSubtree(3, 1))
	assert.True(t, tree.IsInSubtree(1, 1))
	assert.False(t, tree.IsInSubtree(4, 1))
}

func TestTreeSameSubtree(t *testing.T) {
	tree := testTree()
	assert.True(t, tree.SameSubtree([]db.ResourceProviderID{2, 3}))
	assert.True(t, tree.SameSubtree([]db.ResourceProviderID{1}))
	assert.True(t, tree.SameSubtree(nil))
	assert.False(t, tree.SameSubtree([]db.ResourceProviderID{2, 4}))
}

func TestTreeUUID(t *testing.T) {
	tree := testTree()
	assert.Equal(t, "uuid-2", tree.UUID(2))
}
