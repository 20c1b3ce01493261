package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	folderSet    = NewPropertySet("folder", nil)
	folderName   = folderSet.StringProperty("name")
	folderSize   = folderSet.IntProperty("size")
	folderRatio  = folderSet.FloatProperty("ratio")
	folderHidden = folderSet.BoolProperty("hidden")
	folderMTime  = folderSet.TimeProperty("mtime")
	noteSet      = NewPropertySet("note", nil)
	folderPinned = folderSet.Reference("pinned", noteSet)
	folderNotes  = folderSet.ListProperty("notes", noteSet)
	folderSubs   = folderSet.ListProperty("folders", folderSet)
)

func TestPropertySet_Declarations(t *testing.T) {
	require.Len(t, folderSet.Scalars(), 6)
	require.Len(t, folderSet.Lists(), 2)
	require.Equal(t, 0, folderName.Index())
	require.Equal(t, 5, folderPinned.Index())
	require.Equal(t, 1, folderSubs.Index())
	require.True(t, folderPinned.IsReference())
	require.Equal(t, noteSet, folderPinned.Target())
	require.Equal(t, "folder.notes", folderNotes.String())

	p, ok := folderSet.Scalar("size")
	require.True(t, ok)
	require.Same(t, folderSize, p)

	_, ok = folderSet.List("missing")
	require.False(t, ok)
}

func TestPropertySet_DuplicatePanics(t *testing.T) {
	set := NewPropertySet("dup", nil)
	set.StringProperty("a")
	require.Panics(t, func() { set.IntProperty("a") })
	set.ListProperty("l", set)
	require.Panics(t, func() { set.ListProperty("l", set) })
}

func TestScalarProperty_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		prop    *ScalarProperty
		in      any
		want    any
		wantErr bool
	}{
		{name: "string", prop: folderName, in: "x", want: "x"},
		{name: "int widened", prop: folderSize, in: 3, want: int64(3)},
		{name: "int32 widened", prop: folderSize, in: int32(4), want: int64(4)},
		{name: "float from int", prop: folderRatio, in: 2, want: float64(2)},
		{name: "bool", prop: folderHidden, in: true, want: true},
		{name: "nil takes default", prop: folderSize, in: nil, want: int64(0)},
		{name: "nil ref", prop: folderPinned, in: nil, want: nil},
		{name: "wrong kind", prop: folderName, in: 1, wantErr: true},
		{name: "string for ref", prop: folderPinned, in: "k", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.prop.Normalize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEqual(t *testing.T) {
	now := time.Now()
	require.True(t, Equal(nil, nil))
	require.False(t, Equal(nil, ""))
	require.True(t, Equal(int64(1), int64(1)))
	require.False(t, Equal(int64(1), float64(1)))
	require.True(t, Equal(now, now.UTC()))
}

func TestSchema_Lookup(t *testing.T) {
	s := NewSchema(folderSet)
	require.Equal(t, folderSet, s.Root())

	got, ok := s.Lookup("note")
	require.True(t, ok)
	require.Equal(t, noteSet, got)

	_, ok = s.Lookup("account")
	require.False(t, ok)
}

func TestInvariant_Panics(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InvariantError)
		require.True(t, ok)
		require.Equal(t, "op", ie.Op)
		require.Contains(t, ie.Error(), "broken 7")
	}()
	Invariant("op", "broken %d", 7)
}
