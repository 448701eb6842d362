// Package layout turns expense headers and fetched receipt images into a
// paginated document model. Encoders render the model to bytes.
package layout

import (
	"github.com/joseph-ayodele/receipts-compiler/constants"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
)

type ElementKind string

const (
	ElementText  ElementKind = "text"
	ElementImage ElementKind = "image"
)

// TextStyle selects font weight and size in the encoder.
type TextStyle string

const (
	StyleTitle    TextStyle = "title"
	StyleSubtitle TextStyle = "subtitle"
	StyleHeading  TextStyle = "heading"
	StyleBody     TextStyle = "body"
)

// Element is one placed block. Coordinates are in page units from the
// top-left corner.
type Element struct {
	Kind      ElementKind
	X, Y      float64
	W, H      float64
	Text      string
	Style     TextStyle
	ExpenseID string
	ReceiptID string
	Image     *entity.FetchedImage
}

// Bottom returns the y coordinate just below the element.
func (e Element) Bottom() float64 { return e.Y + e.H }

type Page struct {
	Elements []Element
}

// GroupSummary records what happened to one input expense.
type GroupSummary struct {
	ExpenseID string
	JobNo     string
	Status    constants.GroupStatus
	Resolved  int
	Placed    int
}

// Document is the finished layout handed to an encoder.
type Document struct {
	PageWidth  float64
	PageHeight float64
	Pages      []Page
	Groups     []GroupSummary
}

// ImageCount returns the number of placed receipt images.
func (d *Document) ImageCount() int {
	n := 0
	for _, p := range d.Pages {
		for _, el := range p.Elements {
			if el.Kind == ElementImage {
				n++
			}
		}
	}
	return n
}

// SkippedGroups returns how many input expenses produced no output.
func (d *Document) SkippedGroups() int {
	n := 0
	for _, g := range d.Groups {
		if g.Status != constants.GroupIncluded {
			n++
		}
	}
	return n
}
