// Package render encodes a layout.Document into its final byte form.
package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"github.com/joseph-ayodele/receipts-compiler/constants"
	"github.com/joseph-ayodele/receipts-compiler/internal/layout"
)

// Encoder serializes a composed document.
type Encoder interface {
	Encode(doc *layout.Document) ([]byte, error)
	ContentType() string
	Extension() string
}

type fontSpec struct {
	style string
	size  float64
}

var fonts = map[layout.TextStyle]fontSpec{
	layout.StyleTitle:    {style: "B", size: 16},
	layout.StyleSubtitle: {style: "", size: 11},
	layout.StyleHeading:  {style: "B", size: 11},
	layout.StyleBody:     {style: "", size: 10},
}

// PDFEncoder renders documents with fpdf using the core Helvetica font.
type PDFEncoder struct {
	logger *slog.Logger
	// now stamps the document metadata; fixed in tests.
	now func() time.Time
}

func NewPDFEncoder(logger *slog.Logger) *PDFEncoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFEncoder{logger: logger, now: time.Now}
}

func (e *PDFEncoder) ContentType() string { return constants.ContentTypePDF }
func (e *PDFEncoder) Extension() string   { return "pdf" }

func (e *PDFEncoder) Encode(doc *layout.Document) ([]byte, error) {
	start := time.Now()

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: doc.PageWidth, Ht: doc.PageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("receipts-compiler", true)
	pdf.SetCreationDate(e.now())
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		pdf.AddPage()
		for _, el := range page.Elements {
			switch el.Kind {
			case layout.ElementText:
				f, ok := fonts[el.Style]
				if !ok {
					f = fonts[layout.StyleBody]
				}
				pdf.SetFont("Helvetica", f.style, f.size)
				pdf.SetXY(el.X, el.Y)
				pdf.CellFormat(el.W, el.H, fitText(pdf, tr(el.Text), el.W), "", 0, "L", false, 0, "")
			case layout.ElementImage:
				if err := placeImage(pdf, el); err != nil {
					return nil, err
				}
			}
		}
		if pdf.Err() {
			return nil, fmt.Errorf("render page: %w", pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		e.logger.Error("render.pdf.failed", "error", err)
		return nil, fmt.Errorf("encode pdf: %w", err)
	}

	e.logger.Info("render.pdf.ok",
		"pages", len(doc.Pages),
		"images", doc.ImageCount(),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func placeImage(pdf *fpdf.Fpdf, el layout.Element) error {
	if el.Image == nil {
		return fmt.Errorf("image element for receipt %s has no payload", el.ReceiptID)
	}
	kind := constants.EncoderImageType(el.Image.ContentType)
	if kind == "" {
		return fmt.Errorf("receipt %s: cannot embed %q", el.ReceiptID, el.Image.ContentType)
	}
	opts := fpdf.ImageOptions{ImageType: kind}
	name := "receipt-" + el.ReceiptID
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(el.Image.Data))
	if pdf.Err() {
		return fmt.Errorf("register receipt %s: %w", el.ReceiptID, pdf.Error())
	}
	pdf.ImageOptions(name, el.X, el.Y, el.W, el.H, false, opts, 0, "")
	return nil
}

// fitText shortens s with a trailing ellipsis until it fits in width.
func fitText(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	const ellipsis = "..."
	for len(s) > 0 {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
		if pdf.GetStringWidth(s+ellipsis) <= width {
			return s + ellipsis
		}
	}
	return ""
}
