package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"surveybox/internal/docstore"
)

func TestAdmin_CreateHierarchy(t *testing.T) {
	ctx := context.Background()
	st := docstore.NewMemStore()
	a := New(st, zap.NewNop())

	acc, err := a.CreateAccount(ctx, "Cafe Allegro")
	require.NoError(t, err)
	loc, err := a.CreateLocation(ctx, acc, "Front", 47.6587, -122.3138)
	require.NoError(t, err)
	stream, err := a.CreateStream(ctx, acc, loc, "Register 1")
	require.NoError(t, err)

	got, err := st.Get(ctx, docstore.Join("accounts", acc, "locations", loc))
	require.NoError(t, err)
	assert.Equal(t, "Front", got["name"])
	assert.Equal(t, docstore.GeoPoint{Lat: 47.6587, Lng: -122.3138}, got["coords"])

	got, err = st.Get(ctx, docstore.StreamDoc(stream))
	require.NoError(t, err)
	assert.Equal(t, "Register 1", got["name"])
	assert.Equal(t, docstore.Ref{Path: "accounts/" + acc + "/locations/" + loc}, got["location"])
}

func TestAdmin_RejectsUnknownParents(t *testing.T) {
	ctx := context.Background()
	a := New(docstore.NewMemStore(), zap.NewNop())

	_, err := a.CreateLocation(ctx, "nope", "Front", 1, 1)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	acc, err := a.CreateAccount(ctx, "Cafe")
	require.NoError(t, err)
	_, err = a.CreateStream(ctx, acc, "nope", "Register")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = a.CreateLocation(ctx, acc, "Bad", 91, 0)
	assert.Error(t, err)
	_, err = a.CreateAccount(ctx, "")
	assert.Error(t, err)
}
