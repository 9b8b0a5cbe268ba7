package draw

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-maps/internal/domain"
)

func TestStartToggles(t *testing.T) {
	var m Machine
	require.NoError(t, m.Start(ShapeLine))
	assert.Equal(t, ModeDrawing, m.Mode)
	require.NoError(t, m.AddVertex(orb.Point{0, 0}))

	require.NoError(t, m.Start(ShapePolygon))
	assert.Equal(t, ShapePolygon, m.Shape)
	assert.Empty(t, m.Vertices, "switching shape discards in-progress vertices")

	require.NoError(t, m.Start(ShapePolygon))
	assert.Equal(t, ModeIdle, m.Mode)

	require.NoError(t, m.StartMeasure())
	assert.Equal(t, ModeMeasuring, m.Mode)
	require.NoError(t, m.StartMeasure())
	assert.Equal(t, ModeIdle, m.Mode)

	assert.True(t, domain.IsKind(m.Start("star"), domain.KindValidation))
}

func TestInvalidTransitions(t *testing.T) {
	var m Machine
	assert.True(t, domain.IsKind(m.AddVertex(orb.Point{0, 0}), domain.KindValidation))
	_, err := m.Complete()
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	require.NoError(t, m.Start(ShapePolygon))
	require.NoError(t, m.AddVertex(orb.Point{0, 0}))
	require.NoError(t, m.AddVertex(orb.Point{0, 1}))
	_, err = m.Complete()
	assert.True(t, domain.IsKind(err, domain.KindValidation), "polygon needs 3 vertices")
	assert.Equal(t, ModeDrawing, m.Mode, "failed completion keeps the sketch")

	require.NoError(t, m.Start(ShapeCircle))
	require.NoError(t, m.AddVertex(orb.Point{0, 0}))
	require.NoError(t, m.AddVertex(orb.Point{0, 0.001}))
	assert.True(t, domain.IsKind(m.AddVertex(orb.Point{0, 0.002}), domain.KindValidation))

	assert.True(t, domain.IsKind(m.AddVertex(orb.Point{200, 0}), domain.KindValidation))
}

func TestCompleteMeasurements(t *testing.T) {
	t.Run("short line in meters", func(t *testing.T) {
		var m Machine
		require.NoError(t, m.Start(ShapeLine))
		require.NoError(t, m.AddVertex(orb.Point{0, 0}))
		require.NoError(t, m.AddVertex(orb.Point{0, 0.001}))
		res, err := m.Complete()
		require.NoError(t, err)
		assert.Equal(t, KindLine, res.Kind)
		assert.InDelta(t, 111.3, res.LengthM, 0.5)
		assert.Equal(t, "Longitud: 111 m", res.Label)
		assert.Equal(t, ModeIdle, m.Mode)
		assert.Len(t, m.Completed, 1)
	})

	t.Run("long measure in kilometers", func(t *testing.T) {
		var m Machine
		require.NoError(t, m.StartMeasure())
		require.NoError(t, m.AddVertex(orb.Point{0, 0}))
		require.NoError(t, m.AddVertex(orb.Point{0, 0.1}))
		res, err := m.Complete()
		require.NoError(t, err)
		assert.Equal(t, KindMeasure, res.Kind)
		assert.Equal(t, "Longitud: 11.13 km", res.Label)
	})

	t.Run("polygon area and perimeter", func(t *testing.T) {
		var m Machine
		require.NoError(t, m.Start(ShapePolygon))
		for _, p := range []orb.Point{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}} {
			require.NoError(t, m.AddVertex(p))
		}
		res, err := m.Complete()
		require.NoError(t, err)
		assert.InDelta(t, 123.9, res.AreaM2/sqmPerHectare, 1.0)
		assert.InDelta(t, 4.45, res.LengthM/1000, 0.01)
		assert.Contains(t, res.Label, " ha")
		assert.Contains(t, res.Label, "Perímetro: 4.45 km")
	})

	t.Run("circle radius and area", func(t *testing.T) {
		var m Machine
		require.NoError(t, m.Start(ShapeCircle))
		require.NoError(t, m.AddVertex(orb.Point{-71.6, -35.4}))
		require.NoError(t, m.AddVertex(orb.Point{-71.6, -35.401}))
		res, err := m.Complete()
		require.NoError(t, err)
		assert.InDelta(t, 111.3, res.RadiusM, 0.5)
		assert.InDelta(t, 3.89, res.AreaM2/sqmPerHectare, 0.02)
		assert.Equal(t, "Radio: 111 m | Área: 3.89 ha", res.Label)
	})
}

func TestCancelClearsEverything(t *testing.T) {
	var m Machine
	require.NoError(t, m.Start(ShapeLine))
	require.NoError(t, m.AddVertex(orb.Point{0, 0}))
	require.NoError(t, m.AddVertex(orb.Point{1, 0}))
	_, err := m.Complete()
	require.NoError(t, err)

	require.NoError(t, m.Start(ShapePolygon))
	require.NoError(t, m.AddVertex(orb.Point{0, 0}))
	m.Cancel()

	assert.Equal(t, ModeIdle, m.Mode)
	assert.Empty(t, m.Vertices)
	assert.Empty(t, m.Completed)
}

func TestDeleteAndGeoJSON(t *testing.T) {
	var m Machine
	require.NoError(t, m.Start(ShapeLine))
	require.NoError(t, m.AddVertex(orb.Point{0, 0}))
	require.NoError(t, m.AddVertex(orb.Point{0, 0.001}))
	line, err := m.Complete()
	require.NoError(t, err)

	require.NoError(t, m.Start(ShapeCircle))
	require.NoError(t, m.AddVertex(orb.Point{0, 0}))
	require.NoError(t, m.AddVertex(orb.Point{0, 0.001}))
	_, err = m.Complete()
	require.NoError(t, err)

	fc := m.GeoJSON()
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "line", fc.Features[0].Properties["kind"])
	assert.Equal(t, orb.Point{0, 0}, fc.Features[1].Geometry)
	assert.Contains(t, fc.Features[1].Properties, "radius_m")

	require.NoError(t, m.Delete(line.ID))
	assert.True(t, domain.IsKind(m.Delete(line.ID), domain.KindNotFound))
	assert.Len(t, m.GeoJSON().Features, 1)
}

func TestMachineRoundTripsThroughJSON(t *testing.T) {
	var m Machine
	require.NoError(t, m.Start(ShapePolygon))
	require.NoError(t, m.AddVertex(orb.Point{1, 2}))

	raw, err := json.Marshal(&m)
	require.NoError(t, err)
	var back Machine
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, m, back)
}
