package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopupEscapes(t *testing.T) {
	r := MustDefault()
	html, err := r.Render(PopupFragment, map[string]any{
		"Layer": "parcela",
		"Rows": []map[string]string{
			{"Key": "nombre", "Value": "<b>Lote 1</b>"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>parcela</strong>")
	assert.Contains(t, html, "&lt;b&gt;Lote 1&lt;/b&gt;")
}

func TestLayerListEmpty(t *testing.T) {
	r := MustDefault()
	html, err := r.Render(LayerListFragment, map[string]any{"Layers": nil, "CanEdit": false})
	require.NoError(t, err)
	assert.Contains(t, html, `id="layer-list"`)
	assert.Contains(t, html, "Sin capas")
}

func TestOverridesLayerOnBuiltins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notice.html"),
		[]byte(`{{define "notice"}}custom {{.Message}}{{end}}`), 0o644))

	r := MustDefault()
	require.NoError(t, r.Reload(dir))
	out, err := r.Render(NoticeFragment, map[string]string{"Message": "hola"})
	require.NoError(t, err)
	assert.Equal(t, "custom hola", out)

	_, err = r.Render(PopupFragment, map[string]any{"Layer": "x"})
	assert.NoError(t, err, "fragments the directory leaves alone stay built-in")

	assert.Error(t, r.Reload(filepath.Join(dir, "missing")))
	out, err = r.Render(NoticeFragment, map[string]string{"Message": "hola"})
	require.NoError(t, err)
	assert.Equal(t, "custom hola", out, "a failed reload keeps the previous set")
}

func TestNoticeFragment(t *testing.T) {
	out, err := MustDefault().Render(NoticeFragment, map[string]string{"Level": "error", "Message": "<x>"})
	require.NoError(t, err)
	assert.Contains(t, out, `class="toast toast-error"`)
	assert.Contains(t, out, "&lt;x&gt;")
}
