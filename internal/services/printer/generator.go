package printer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/models"
)

// Format selects the physical label stock
type Format string

const (
	// FormatArgox is the 100x70 mm Argox roll with three identical columns
	FormatArgox Format = "argox"
	// FormatTall is a single 95.5x152.4 mm label
	FormatTall Format = "tall"
)

// compositionChars is how much of the composition fits on a label
const compositionChars = 20

// layout describes page geometry and font sizes for one format, in mm and pt
type layout struct {
	pageW, pageH float64
	cols         int
	pad          float64
	titleSize    float64
	refSize      float64
	bodySize     float64
	footerSize   float64
	lineH        float64
}

var layouts = map[Format]layout{
	FormatArgox: {pageW: 100, pageH: 70, cols: 3, pad: 1.5, titleSize: 6, refSize: 5.5, bodySize: 5, footerSize: 3.5, lineH: 2.6},
	FormatTall:  {pageW: 95.5, pageH: 152.4, cols: 1, pad: 5, titleSize: 14, refSize: 11, bodySize: 10, footerSize: 7, lineH: 5.5},
}

// ParseFormat maps a query value to a format; empty means argox
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatArgox, nil
	case FormatArgox, FormatTall:
		return f, nil
	default:
		return "", apperr.New(apperr.KindMalformedInput, fmt.Sprintf("unknown label format %q (use argox or tall)", s), nil)
	}
}

// DetailsURL builds the link encoded in the QR code. base is the configured
// public URL; when empty the link is host-relative.
func DetailsURL(base string, orderID int64) string {
	return strings.TrimRight(base, "/") + "/view/" + strconv.FormatInt(orderID, 10)
}

// ShortComposition trims the composition to what is printed on the label
func ShortComposition(s string) string {
	r := []rune(s)
	if len(r) <= compositionChars {
		return s
	}
	return string(r[:compositionChars]) + "..."
}

// GenerateLabelPDF renders one label page for the record. The QR code points to detailsURL.
func GenerateLabelPDF(rec models.ProductionLabel, detailsURL string, format Format) ([]byte, error) {
	lay, ok := layouts[format]
	if !ok {
		return nil, apperr.New(apperr.KindMalformedInput, fmt.Sprintf("unknown label format %q", format), nil)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: lay.pageW, Ht: lay.pageH},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(fmt.Sprintf("OP %d", rec.OrderID), true)
	pdf.AddPage()

	// Core fonts are cp1252; descriptions carry Portuguese accents
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	qrPng, err := qrcode.Encode(detailsURL, qrcode.Medium, 512)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("qr", imgOptions, bytes.NewReader(qrPng))

	colW := lay.pageW / float64(lay.cols)
	for col := 0; col < lay.cols; col++ {
		x := float64(col) * colW
		drawLabel(pdf, tr, lay, rec, detailsURL, x, colW)

		// Cutting guide between columns
		if col > 0 {
			pdf.SetDrawColor(200, 200, 200)
			pdf.SetDashPattern([]float64{1, 1}, 0)
			pdf.Line(x, 0, x, lay.pageH)
			pdf.SetDashPattern([]float64{}, 0)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawLabel(pdf *gofpdf.Fpdf, tr func(string) string, lay layout, rec models.ProductionLabel, detailsURL string, x, w float64) {
	innerW := w - 2*lay.pad
	left := x + lay.pad
	y := lay.pad

	// Description and reference
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", lay.titleSize)
	pdf.SetXY(left, y)
	pdf.CellFormat(innerW, lay.lineH, fit(pdf, tr, strings.ToUpper(rec.ProductDescription), innerW), "", 0, "L", false, 0, "")
	y += lay.lineH

	pdf.SetFont("Arial", "", lay.refSize)
	pdf.SetTextColor(80, 80, 80)
	pdf.SetXY(left, y)
	pdf.CellFormat(innerW, lay.lineH, fit(pdf, tr, "REF: "+rec.ProductCode, innerW), "", 0, "L", false, 0, "")
	y += lay.lineH + lay.pad

	// Footer block height: OP/lote line, composition line, URL line
	footerH := 3 * lay.lineH
	qrSpace := lay.pageH - y - footerH - lay.pad
	qrSize := qrSpace
	if qrSize > innerW {
		qrSize = innerW
	}
	pdf.ImageOptions("qr", x+(w-qrSize)/2, y+(qrSpace-qrSize)/2, qrSize, qrSize, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	y += qrSpace

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", lay.bodySize)
	pdf.SetXY(left, y)
	pdf.CellFormat(innerW/2, lay.lineH, "OP: "+strconv.FormatInt(rec.OrderID, 10), "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", lay.bodySize)
	pdf.CellFormat(innerW/2, lay.lineH, fit(pdf, tr, "Lote: "+rec.BatchCode, innerW/2), "", 0, "R", false, 0, "")
	y += lay.lineH

	pdf.SetXY(left, y)
	pdf.CellFormat(innerW, lay.lineH, fit(pdf, tr, "Comp: "+ShortComposition(rec.Composition), innerW), "", 0, "L", false, 0, "")
	y += lay.lineH

	pdf.SetFont("Arial", "", lay.footerSize)
	pdf.SetTextColor(150, 150, 150)
	pdf.SetXY(left, y)
	pdf.CellFormat(innerW, lay.lineH, fit(pdf, tr, detailsURL, innerW), "", 0, "C", false, 0, "")
}

// fit translates s for the core fonts and truncates it to width using the current font
func fit(pdf *gofpdf.Fpdf, tr func(string) string, s string, width float64) string {
	if pdf.GetStringWidth(tr(s)) <= width {
		return tr(s)
	}
	const ellipsis = "..."
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(tr(string(r)+ellipsis)) > width {
		r = r[:len(r)-1]
	}
	return tr(string(r) + ellipsis)
}
