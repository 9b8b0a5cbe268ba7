package humastar

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-maps/internal/domain"
)

func TestSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"layerid":"l1","weight":3,"opacity":"0.5","radius":"x"}`))
	require.NoError(t, err)

	assert.Equal(t, "l1", s.String("layerid"))
	assert.Empty(t, s.String("weight"))

	w, ok := s.Float("weight")
	assert.True(t, ok)
	assert.Equal(t, 3.0, w)
	o, ok := s.Float("opacity")
	assert.True(t, ok)
	assert.Equal(t, 0.5, o)
	_, ok = s.Float("radius")
	assert.False(t, ok)
	_, ok = s.Float("missing")
	assert.False(t, ok)
	assert.True(t, s.Has("radius"))

	_, err = (&SignalsInput{RawBody: []byte("{")}).MustParse()
	assert.Error(t, err)
}

var defs = []ActionDef{
	{Rel: "edit", Pattern: "/p/%s", Method: "PATCH", Guard: "edit"},
	{Rel: "delete", Pattern: "/p/%s", Method: "DELETE", Title: "Eliminar", Guard: "admin"},
	{Rel: "layers", Pattern: "/p/%s/layers"},
}

func TestActionsFor(t *testing.T) {
	editorOnly := func(g string) bool { return g == "edit" }
	actions := ActionsFor("42", defs, editorOnly)
	require.Len(t, actions, 2)
	assert.Equal(t, `</p/42>; rel="edit"; method="PATCH"`, actions[0].LinkHeader())
	assert.Equal(t, `</p/42/layers>; rel="layers"`, actions[1].LinkHeader())

	all := ActionsFor("42", defs, func(string) bool { return true })
	assert.Equal(t, `</p/42>; rel="delete"; method="DELETE"; title="Eliminar"`, all[1].LinkHeader())
}

type item struct {
	ID string `json:"id"`
}

func (i item) Actions() []Action {
	return ActionsFor(i.ID, defs, func(string) bool { return false })
}

func TestLinkTransformer(t *testing.T) {
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, LinkTransformer(map[string][]string{
		"/items/{id}": {`</items>; rel="collection"`},
	}))
	_, api := humatest.New(t, cfg)
	huma.Get(api, "/items/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body item }, error) {
		return &struct{ Body item }{Body: item{ID: in.ID}}, nil
	})

	resp := api.Get("/items/7")
	require.Equal(t, http.StatusOK, resp.Code)
	links := resp.Header().Values("Link")
	assert.Contains(t, links, `</items>; rel="collection"`)
	assert.Contains(t, links, `</items/7>; rel="self"`)
	assert.Contains(t, links, `</p/7/layers>; rel="layers"`)
	assert.NotContains(t, links, `</p/7>; rel="edit"; method="PATCH"`)
}

func TestHTTPError(t *testing.T) {
	assert.Nil(t, HTTPError(nil))

	cases := []struct {
		err  error
		want int
	}{
		{domain.Validation("op", "bad"), http.StatusUnprocessableEntity},
		{domain.Forbidden("op", "no"), http.StatusForbidden},
		{domain.NotFound("op", "layer", "x"), http.StatusNotFound},
		{domain.Unsupported("op", "txt"), http.StatusUnsupportedMediaType},
		{domain.Backend("op", errors.New("connection refused")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		var se huma.StatusError
		require.ErrorAs(t, HTTPError(c.err), &se)
		assert.Equal(t, c.want, se.GetStatus(), c.err.Error())
	}

	var se huma.StatusError
	require.ErrorAs(t, HTTPError(domain.Backend("op", errors.New("connection refused"))), &se)
	assert.Contains(t, se.Error(), "connection refused")
}
