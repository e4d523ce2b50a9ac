package table

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string
	Name string
}

func byID(r row) string { return r.ID }

func rows(ids ...string) []row {
	out := make([]row, 0, len(ids))
	for _, id := range ids {
		out = append(out, row{ID: id, Name: "name-" + id})
	}
	return out
}

func TestSingle(t *testing.T) {
	assert := require.New(t)
	tbl := New(Single, byID)
	tbl.Replace(rows("a", "b", "c"))

	on, err := tbl.Toggle("a")
	assert.NoError(err)
	assert.True(on)

	on, err = tbl.Toggle("b")
	assert.NoError(err)
	assert.True(on)
	assert.False(tbl.IsSelected("a"))
	assert.Equal(rows("b"), tbl.Selected())

	on, err = tbl.Toggle("b")
	assert.NoError(err)
	assert.False(on)
	assert.Empty(tbl.Selected())

	_, ok := tbl.First()
	assert.False(ok)
}

func TestMulti(t *testing.T) {
	assert := require.New(t)
	tbl := New(Multi, byID)
	tbl.Replace(rows("a", "b", "c"))

	for _, k := range []string{"c", "a"} {
		_, err := tbl.Toggle(k)
		assert.NoError(err)
	}
	assert.Equal(rows("a", "c"), tbl.Selected())

	_, err := tbl.Toggle("c")
	assert.NoError(err)
	assert.Equal(rows("a"), tbl.Selected())

	first, ok := tbl.First()
	assert.True(ok)
	assert.Equal("a", first.ID)
}

func TestUnknownRow(t *testing.T) {
	assert := require.New(t)
	tbl := New(Single, byID)
	tbl.Replace(rows("a"))

	_, err := tbl.Toggle("zz")
	assert.True(errors.Is(err, ErrUnknownRow))
	assert.True(errors.Is(tbl.Update("zz", func(*row) {}), ErrUnknownRow))
	assert.True(errors.Is(tbl.Select("zz"), ErrUnknownRow))
}

func TestReplaceClearsSelection(t *testing.T) {
	assert := require.New(t)
	tbl := New(Multi, byID)
	tbl.Replace(rows("a", "b"))
	assert.NoError(tbl.Select("a"))
	assert.NoError(tbl.Select("a"))
	assert.True(tbl.IsSelected("a"))

	tbl.Replace(rows("a", "b", "b"))
	assert.Equal(2, tbl.Len())
	assert.Empty(tbl.Selected())

	tbl.Clear()
	assert.Zero(tbl.Len())
}

func TestUpdateAndView(t *testing.T) {
	assert := require.New(t)
	tbl := New(Single, byID)
	tbl.Replace(rows("a", "b"))
	assert.NoError(tbl.Select("b"))

	assert.NoError(tbl.Update("a", func(r *row) { r.Name = "renamed" }))
	got, ok := tbl.Get("a")
	assert.True(ok)
	assert.Equal("renamed", got.Name)

	tbl.UpdateAll(func(r *row) { r.Name += "!" })
	assert.Equal([]Row[row]{
		{Key: "a", Data: row{ID: "a", Name: "renamed!"}},
		{Key: "b", Selected: true, Data: row{ID: "b", Name: "name-b!"}},
	}, tbl.View())

	// Rows hands out a copy.
	r := tbl.Rows()
	r[0].Name = "x"
	got, _ = tbl.Get("a")
	assert.Equal("renamed!", got.Name)
}

func TestCommitOrdering(t *testing.T) {
	assert := require.New(t)
	tbl := New(Single, byID)

	older := tbl.Reserve()
	newer := tbl.Reserve()
	assert.True(tbl.Stale(older))
	assert.False(tbl.Stale(newer))

	assert.True(tbl.Commit(newer, rows("new")))
	assert.False(tbl.Commit(older, rows("old")))
	assert.Equal(rows("new"), tbl.Rows())
}
