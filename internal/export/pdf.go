package export

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/mapview"
)

const (
	pdfTitle   = "Pudumaps — Export"
	pdfMargin  = 24.0
	pdfTitleY  = 32.0
	pdfImageY  = 60.0
	pdfFooterH = 100.0
	pdfLineH   = 13.0
)

// PDFOptions controls the page. Snapshot is a PNG capture of the client's
// map; without one the layers are rasterized server side over View.
type PDFOptions struct {
	Snapshot   []byte
	View       orb.Bound
	ListLayers bool
}

// PDF lays the map image on one A4 landscape page under a title and,
// optionally, lists the visible layer names.
func PDF(layers []mapview.PlannedLayer, opts PDFOptions, now time.Time) (*File, error) {
	const op = "export.pdf"
	img := opts.Snapshot
	if len(img) == 0 {
		var err error
		if img, err = Raster(layers, opts.View, RasterWidth, RasterHeight); err != nil {
			return nil, fmt.Errorf("rasterize: %w", err)
		}
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, domain.Validation(op, "snapshot must be a PNG image: %v", err)
	}

	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(pdfMargin, pdfTitleY, tr(pdfTitle))

	imgW := pageW - 2*pdfMargin
	imgH := imgW * float64(cfg.Height) / float64(cfg.Width)
	if maxH := pageH - pdfImageY - pdfFooterH; imgH > maxH {
		imgW, imgH = imgW*maxH/imgH, maxH
	}
	imgOpts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("map", imgOpts, bytes.NewReader(img))
	pdf.ImageOptions("map", pdfMargin, pdfImageY, imgW, imgH, false, imgOpts, 0, "")

	if opts.ListLayers {
		pdf.SetFont("Helvetica", "", 11)
		pdf.Text(pdfMargin, pageH-70, tr("Capas visibles:"))
		pdf.SetXY(pdfMargin, pageH-52-pdfLineH+3)
		pdf.MultiCell(pageW-2*pdfMargin, pdfLineH, tr(layerList(layers)), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return &File{Name: fileName("pdf", now), ContentType: PDFContentType, Data: out.Bytes()}, nil
}

func layerList(layers []mapview.PlannedLayer) string {
	if len(layers) == 0 {
		return "— (sin capas visibles)"
	}
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = "• " + l.Name
	}
	return strings.Join(names, "\n")
}
