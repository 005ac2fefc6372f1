package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StartsAsUnsavedIdea(t *testing.T) {
	p := New("user-1")

	assert.Empty(t, p.ID)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, StatusIdea, p.Status)
	assert.NotNil(t, p.Features)
	assert.Empty(t, p.Features)
}

func TestAddThenRemoveFeature_IsNoOpOnRemaining(t *testing.T) {
	p := New("user-1")
	p.AddFeature("login")
	p.AddFeature("search")
	p.AddFeature("checkout")

	before := append([]string{}, p.Features...)

	p.AddFeature("notifications")
	require.NoError(t, p.RemoveFeature(3))

	assert.Equal(t, before, p.Features, "untouched entries keep their order")
}

func TestRemoveFeature_PreservesOrder(t *testing.T) {
	p := New("user-1")
	p.AddFeature("a")
	p.AddFeature("b")
	p.AddFeature("c")

	require.NoError(t, p.RemoveFeature(1))
	assert.Equal(t, []string{"a", "c"}, p.Features)
}

func TestRemoveFeature_IndexOutOfRange(t *testing.T) {
	p := New("user-1")
	p.AddFeature("only")

	assert.ErrorIs(t, p.RemoveFeature(-1), ErrIndexOutOfRange)
	assert.ErrorIs(t, p.RemoveFeature(1), ErrIndexOutOfRange)
	assert.Equal(t, []string{"only"}, p.Features)
}

func TestNormalizeFeatures_NeverNil(t *testing.T) {
	p := &Project{}
	p.NormalizeFeatures()

	require.NotNil(t, p.Features)
	assert.Empty(t, p.Features)

	// AddFeature on a nil slice normalizes too.
	q := &Project{}
	q.AddFeature("x")
	assert.Equal(t, []string{"x"}, q.Features)
}

func TestSetGeneratedCode_NilBecomesEmptyMap(t *testing.T) {
	p := New("user-1")
	p.SetGeneratedCode(nil)

	require.NotNil(t, p.GeneratedCode)
	assert.Empty(t, p.GeneratedCode)
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusIdea, StatusBuilding, StatusPreview, StatusPublished} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("draft").Valid())
	assert.False(t, Status("").Valid())
}
