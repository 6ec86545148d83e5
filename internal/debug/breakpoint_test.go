// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

func TestBreakpointStore_SetAndGet(t *testing.T) {
	store := newBreakpointStore()

	id1, err := store.set(&Breakpoint{File: "main.ds", Line: 3, Enabled: true})
	require.NoError(t, err)
	id2, err := store.set(&Breakpoint{File: "lib.ds", Line: 7, Enabled: true})
	require.NoError(t, err)

	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)

	bp, err := store.get(id1)
	require.NoError(t, err)
	assert.Equal(t, "main.ds", bp.File)
	assert.Equal(t, KindLine, bp.Kind)

	_, err = store.get(99)
	var nf *dbgerrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestBreakpointStore_DuplicateLineReplaces(t *testing.T) {
	store := newBreakpointStore()

	first, err := store.set(&Breakpoint{File: "main.ds", Line: 3, Enabled: true})
	require.NoError(t, err)
	second, err := store.set(&Breakpoint{File: "main.ds", Line: 3, Enabled: false})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	lines := store.forFile("main.ds")
	require.Len(t, lines, 1)
	assert.Equal(t, second, lines[3].ID)

	_, err = store.get(first)
	assert.Error(t, err)
}

func TestBreakpointStore_Remove(t *testing.T) {
	store := newBreakpointStore()
	id, err := store.set(&Breakpoint{File: "main.ds", Line: 3, Enabled: true})
	require.NoError(t, err)

	bp, err := store.remove(id)
	require.NoError(t, err)
	assert.Equal(t, 3, bp.Line)
	assert.Empty(t, store.forFile("main.ds"))
	assert.Nil(t, store.lookup("main.ds", 3))

	_, err = store.remove(id)
	assert.Error(t, err)
}

func TestBreakpointStore_Validation(t *testing.T) {
	store := newBreakpointStore()

	_, err := store.set(&Breakpoint{File: "main.ds", Line: 1, Kind: KindWatch})
	assert.ErrorIs(t, err, ErrBreakpointKindUnsupported)

	_, err = store.set(&Breakpoint{Line: 1})
	var ve *dbgerrors.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = store.set(&Breakpoint{File: "main.ds", Line: 0})
	assert.ErrorAs(t, err, &ve)
}

func TestBreakpointStore_AllSortedCopies(t *testing.T) {
	store := newBreakpointStore()
	for _, line := range []int{9, 4, 6} {
		_, err := store.set(&Breakpoint{File: "main.ds", Line: line, Enabled: true})
		require.NoError(t, err)
	}

	all := store.all()
	require.Len(t, all, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{all[0].ID, all[1].ID, all[2].ID})

	all[0].Enabled = false
	bp, _ := store.get(1)
	assert.True(t, bp.Enabled)
}

func TestBreakpointsForFile_Empty(t *testing.T) {
	s := NewSession()
	assert.Empty(t, s.BreakpointsForFile("missing.ds"))
}
