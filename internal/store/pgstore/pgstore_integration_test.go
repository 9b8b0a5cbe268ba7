//go:build integration

package pgstore

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-maps/internal/db"
	"github.com/joeblew999/plat-maps/internal/domain"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/store/pgstore/
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration test")
	}
	ctx := context.Background()
	pool, err := db.OpenPostgres(ctx, url)
	require.NoError(t, err)
	require.NoError(t, db.MigratePostgres(ctx, pool))
	s := New(pool)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	owner := uuid.NewString()
	member := uuid.NewString()
	email := member + "@example.com"
	require.NoError(t, s.UpsertUser(ctx, member, email))

	p, err := s.CreateProject(ctx, domain.Project{Name: "it", OwnerID: owner, Visibility: domain.VisibilityPrivate})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteProject(context.Background(), p.ID) })

	base := time.Now().UTC().Truncate(time.Millisecond)
	gj := json.RawMessage(`{"type":"FeatureCollection","features":[]}`)
	a, err := s.CreateLayer(ctx, domain.ProjectLayer{ProjectID: p.ID, Name: "a", GeoJSON: gj, CreatedAt: base})
	require.NoError(t, err)
	b, err := s.CreateLayer(ctx, domain.ProjectLayer{ProjectID: p.ID, Name: "b", GeoJSON: gj, CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)

	layers, err := s.ListLayers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Equal(t, b.ID, layers[0].ID)

	st := domain.DefaultStyle(a.ID)
	st.FillOpacity = 0.6
	require.NoError(t, s.UpsertStyle(ctx, st))
	styles, err := s.GetStyles(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 0.6, styles[a.ID].FillOpacity)
	assert.NotContains(t, styles, b.ID)

	id, err := s.UserIDByEmail(ctx, email)
	require.NoError(t, err)
	require.NoError(t, s.UpsertMember(ctx, domain.ProjectMember{ProjectID: p.ID, UserID: id, Role: domain.RoleViewer}))
	members, err := s.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, email, members[0].Email)

	_, err = s.UserIDByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}
