package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-maps/internal/db"
	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/mapview/draw"
	"github.com/joeblew999/plat-maps/internal/metrics"
	"github.com/joeblew999/plat-maps/internal/session"
	"github.com/joeblew999/plat-maps/internal/storage"
	"github.com/joeblew999/plat-maps/internal/store/duckstore"
)

const parcelaKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>Pozo</name>
      <Point><coordinates>-72.5,-39.8,0</coordinates></Point>
    </Placemark>
    <Placemark>
      <name>Camino</name>
      <LineString><coordinates>-72.5,-39.8 -72.49,-39.79</coordinates></LineString>
    </Placemark>
    <Placemark>
      <name>Lote</name>
      <Polygon><outerBoundaryIs><LinearRing><coordinates>
        -72.5,-39.8 -72.4,-39.8 -72.4,-39.7 -72.5,-39.7 -72.5,-39.8
      </coordinates></LinearRing></outerBoundaryIs></Polygon>
    </Placemark>
  </Document>
</kml>`

type fixture struct {
	svc   *Services
	store *duckstore.Store
	blobs string
}

func newFixture(t *testing.T, blobs storage.Blobs) *fixture {
	t.Helper()
	conn, err := db.OpenDuckDB(db.Config{})
	require.NoError(t, err)
	st, err := duckstore.New(context.Background(), conn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	dir := t.TempDir()
	if blobs == nil {
		blobs = storage.NewLocal(dir)
	}
	svc := New(Deps{
		Store:    st,
		Sessions: session.NewMemory(time.Hour),
		Blobs:    blobs,
		Metrics:  metrics.New(),
		Log:      zerolog.Nop(),
	})
	return &fixture{svc: svc, store: st, blobs: dir}
}

func (f *fixture) project(t *testing.T, owner string, vis domain.Visibility) string {
	t.Helper()
	p, err := f.svc.Projects.Create(context.Background(), owner, ProjectInput{Name: "Parcelas", Visibility: vis})
	require.NoError(t, err)
	return p.ID
}

func TestParcelaEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	pid := f.project(t, "owner", domain.VisibilityPrivate)

	events := f.svc.Bus.Subscribe(pid)
	defer f.svc.Bus.Unsubscribe(events)

	layer, err := f.svc.Layers.Upload(ctx, "owner", pid, "parcela.kml", []byte(parcelaKML))
	require.NoError(t, err)
	assert.Equal(t, "parcela", layer.Name)
	require.NotEmpty(t, layer.SourcePath)
	stored, err := os.ReadFile(filepath.Join(f.blobs, layer.SourcePath))
	require.NoError(t, err)
	assert.Equal(t, parcelaKML, string(stored))

	select {
	case ev := <-events:
		assert.Equal(t, Event{ProjectID: pid, Resource: "layers", Action: "created", ID: layer.ID}, ev)
	case <-time.After(time.Second):
		t.Fatal("no layer event")
	}

	st, err := f.svc.Sessions.Open(ctx, pid, "owner")
	require.NoError(t, err)
	assert.True(t, st.Access.Owner)
	assert.True(t, st.IsVisible(layer.ID))

	plan, err := f.svc.Sessions.Render(ctx, st.ID, "owner")
	require.NoError(t, err)
	require.Len(t, plan.Layers, 1)
	pl := plan.Layers[0]
	assert.Equal(t, "parcela", pl.Name)
	assert.Len(t, pl.GeoJSON.Features, 3)
	assert.Equal(t, domain.DefaultStyle(layer.ID), pl.Style)
	assert.Equal(t, domain.DefaultRadius, pl.PointRadius)
	assert.Len(t, pl.Popups, 3)

	kmz, err := f.svc.Sessions.ExportKMZ(ctx, st.ID, "owner")
	require.NoError(t, err)
	assert.NotEmpty(t, kmz.Data)

	_, err = f.svc.Sessions.SetVisible(ctx, st.ID, "owner", layer.ID, false)
	require.NoError(t, err)
	_, err = f.svc.Sessions.ExportKMZ(ctx, st.ID, "owner")
	assert.True(t, domain.IsKind(err, domain.KindValidation), "no visible layers")
}

func TestUnsavedPatchDiscardedOnReopen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	pid := f.project(t, "owner", domain.VisibilityPrivate)
	layer, err := f.svc.Layers.Upload(ctx, "owner", pid, "parcela.kml", []byte(parcelaKML))
	require.NoError(t, err)

	red := "#ff0000"
	first, err := f.svc.Sessions.Open(ctx, pid, "owner")
	require.NoError(t, err)
	got, err := f.svc.Sessions.PatchStyle(ctx, first.ID, "owner", layer.ID, domain.StylePatch{Color: &red})
	require.NoError(t, err)
	assert.Equal(t, red, got.Color)

	bad := "red"
	_, err = f.svc.Sessions.PatchStyle(ctx, first.ID, "owner", layer.ID, domain.StylePatch{Color: &bad})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	cur, err := f.svc.Sessions.Get(ctx, first.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, red, cur.Style(layer.ID).Color, "bad patch leaves local style as it was")

	second, err := f.svc.Sessions.Open(ctx, pid, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultColor, second.Style(layer.ID).Color)

	_, err = f.svc.Sessions.SaveStyle(ctx, first.ID, "owner", layer.ID)
	require.NoError(t, err)
	third, err := f.svc.Sessions.Open(ctx, pid, "owner")
	require.NoError(t, err)
	assert.Equal(t, red, third.Style(layer.ID).Color)

	styles, err := f.svc.Layers.Styles(ctx, pid, "owner")
	require.NoError(t, err)
	assert.Equal(t, red, styles[layer.ID].Color)
}

func TestAccessThroughServices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	private := f.project(t, "owner", domain.VisibilityPrivate)
	public := f.project(t, "owner", domain.VisibilityPublic)
	layer, err := f.svc.Layers.Upload(ctx, "owner", private, "parcela.kml", []byte(parcelaKML))
	require.NoError(t, err)

	t.Run("stranger on private", func(t *testing.T) {
		_, err := f.svc.Sessions.Open(ctx, private, "stranger")
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})

	t.Run("public is viewer", func(t *testing.T) {
		st, err := f.svc.Sessions.Open(ctx, public, "stranger")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleViewer, st.Access.Role)
		_, err = f.svc.Layers.Upload(ctx, "stranger", public, "parcela.kml", []byte(parcelaKML))
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})

	t.Run("viewer member", func(t *testing.T) {
		require.NoError(t, f.store.UpsertMember(ctx, domain.ProjectMember{ProjectID: private, UserID: "ana", Role: domain.RoleViewer}))
		st, err := f.svc.Sessions.Open(ctx, private, "ana")
		require.NoError(t, err)
		_, err = f.svc.Sessions.SaveStyle(ctx, st.ID, "ana", layer.ID)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
		assert.True(t, domain.IsKind(f.svc.Layers.Delete(ctx, layer.ID, "ana"), domain.KindForbidden))
	})

	t.Run("sessions are private to their user", func(t *testing.T) {
		st, err := f.svc.Sessions.Open(ctx, private, "owner")
		require.NoError(t, err)
		_, err = f.svc.Sessions.Get(ctx, st.ID, "ana")
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := f.svc.Projects.Get(ctx, "nope", "owner")
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})
}

func TestProjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.Projects.Create(ctx, "owner", ProjectInput{Name: "  "})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	pid := f.project(t, "owner", "")
	p, err := f.svc.Projects.Get(ctx, pid, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.VisibilityPrivate, p.Visibility)

	name := "Renamed"
	p, err = f.svc.Projects.Update(ctx, pid, "owner", ProjectPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)

	p, err = f.svc.Projects.SetFavorite(ctx, pid, "owner", true)
	require.NoError(t, err)
	assert.True(t, p.IsFavorite)

	require.NoError(t, f.store.UpsertMember(ctx, domain.ProjectMember{ProjectID: pid, UserID: "ed", Role: domain.RoleEditor}))
	_, err = f.svc.Projects.Update(ctx, pid, "ed", ProjectPatch{Name: &name})
	require.NoError(t, err, "editors may update")
	assert.True(t, domain.IsKind(f.svc.Projects.Delete(ctx, pid, "ed"), domain.KindForbidden), "only the owner deletes")

	list, err := f.svc.Projects.List(ctx, "ed")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.svc.Projects.Delete(ctx, pid, "owner"))
	_, err = f.svc.Projects.Get(ctx, pid, "owner")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	pid := f.project(t, "owner", domain.VisibilityPrivate)
	f.svc.Users.Remember(ctx, "owner", "owner@example.com")
	f.svc.Users.Remember(ctx, "ana", "ana@example.com")

	_, err := f.svc.Members.Invite(ctx, pid, "owner", "nadie@example.com", domain.RoleViewer)
	assert.True(t, domain.IsKind(err, domain.KindValidation), "unknown email")

	_, err = f.svc.Members.Invite(ctx, pid, "owner", "owner@example.com", domain.RoleViewer)
	assert.True(t, domain.IsKind(err, domain.KindValidation), "owner cannot be invited")

	m, err := f.svc.Members.Invite(ctx, pid, "owner", "ANA@example.com", domain.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, "ana", m.UserID)

	_, err = f.svc.Members.List(ctx, pid, "ana")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	require.NoError(t, f.svc.Members.UpdateRole(ctx, pid, "owner", "ana", domain.RoleEditor))
	members, err := f.svc.Members.List(ctx, pid, "owner")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, domain.RoleEditor, members[0].Role)
	assert.Equal(t, "ana@example.com", members[0].Email)

	require.NoError(t, f.svc.Members.Remove(ctx, pid, "owner", "ana"))
	members, err = f.svc.Members.List(ctx, pid, "owner")
	require.NoError(t, err)
	assert.Empty(t, members)
}

type failingBlobs struct{}

func (failingBlobs) Put(context.Context, string, []byte, string) error {
	return errors.New("bucket unavailable")
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("storage failure does not abort the import", func(t *testing.T) {
		f := newFixture(t, failingBlobs{})
		pid := f.project(t, "owner", domain.VisibilityPrivate)
		layer, err := f.svc.Layers.Upload(ctx, "owner", pid, "parcela.kml", []byte(parcelaKML))
		require.NoError(t, err)
		assert.Empty(t, layer.SourcePath)
	})

	t.Run("unsupported format", func(t *testing.T) {
		f := newFixture(t, nil)
		pid := f.project(t, "owner", domain.VisibilityPrivate)
		_, err := f.svc.Layers.Upload(ctx, "owner", pid, "notes.txt", []byte("hola"))
		assert.True(t, domain.IsKind(err, domain.KindUnsupportedFormat))
		layers, err := f.svc.Layers.List(ctx, pid, "owner")
		require.NoError(t, err)
		assert.Empty(t, layers)
	})

	t.Run("delete twice", func(t *testing.T) {
		f := newFixture(t, nil)
		pid := f.project(t, "owner", domain.VisibilityPrivate)
		layer, err := f.svc.Layers.Upload(ctx, "owner", pid, "parcela.kml", []byte(parcelaKML))
		require.NoError(t, err)
		require.NoError(t, f.svc.Layers.Delete(ctx, layer.ID, "owner"))
		assert.True(t, domain.IsKind(f.svc.Layers.Delete(ctx, layer.ID, "owner"), domain.KindNotFound))
	})
}

func TestSessionDrawAndViewport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	pid := f.project(t, "owner", domain.VisibilityPrivate)
	layer, err := f.svc.Layers.Upload(ctx, "owner", pid, "parcela.kml", []byte(parcelaKML))
	require.NoError(t, err)
	st, err := f.svc.Sessions.Open(ctx, pid, "owner")
	require.NoError(t, err)

	_, _, err = f.svc.Sessions.Draw(ctx, st.ID, "owner", DrawVertex, DrawInput{Point: orb.Point{0, 0}})
	assert.True(t, domain.IsKind(err, domain.KindValidation), "vertex while idle")

	_, _, err = f.svc.Sessions.Draw(ctx, st.ID, "owner", DrawStart, DrawInput{Shape: draw.ShapeLine})
	require.NoError(t, err)
	for _, p := range []orb.Point{{-72.5, -39.8}, {-72.5, -39.79}} {
		_, _, err = f.svc.Sessions.Draw(ctx, st.ID, "owner", DrawVertex, DrawInput{Point: p})
		require.NoError(t, err)
	}
	cur, m, err := f.svc.Sessions.Draw(ctx, st.ID, "owner", DrawComplete, DrawInput{})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, draw.ModeIdle, cur.Draw.Mode)

	fc, err := f.svc.Sessions.MeasurementsGeoJSON(ctx, st.ID, "owner")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)
	require.NoError(t, f.svc.Sessions.DeleteMeasurement(ctx, st.ID, "owner", m.ID))

	cur, ok, err := f.svc.Sessions.FitLayer(ctx, st.ID, "owner", layer.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, cur.Viewport.Bounds)

	cur, err = f.svc.Sessions.Home(ctx, st.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, 20, cur.Viewport.Padding)

	_, notice, err := f.svc.Sessions.Locate(ctx, st.ID, "owner", nil)
	require.NoError(t, err)
	require.NotNil(t, notice)
	assert.Equal(t, "Geolocalización no disponible.", notice.Message)

	ids, err := f.svc.Sessions.List(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, []string{st.ID}, ids)
	require.NoError(t, f.svc.Sessions.Close(ctx, st.ID, "owner"))
	_, err = f.svc.Sessions.Get(ctx, st.ID, "owner")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}
