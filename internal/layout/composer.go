package layout

import (
	"fmt"
	"math"

	"github.com/joseph-ayodele/receipts-compiler/constants"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
)

// Config holds page geometry and spacing, all in millimetres. The thresholds
// are tunable; nothing outside this package depends on their exact values.
type Config struct {
	Title        string
	PageWidth    float64
	PageHeight   float64
	Margin       float64
	TitleHeight  float64
	LineHeight   float64
	ImageSpacing float64
	GroupSpacing float64
	// MinContentReservation is the least space that must remain below an
	// expense header for it to start on the current page.
	MinContentReservation float64
}

// DefaultConfig is A4 portrait with 15mm margins.
func DefaultConfig() Config {
	return Config{
		Title:                 "Expense Receipts",
		PageWidth:             210,
		PageHeight:            297,
		Margin:                15,
		TitleHeight:           10,
		LineHeight:            6,
		ImageSpacing:          4,
		GroupSpacing:          8,
		MinContentReservation: 40,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Title == "" {
		c.Title = d.Title
	}
	if c.PageWidth <= 0 || c.PageHeight <= 0 {
		c.PageWidth, c.PageHeight = d.PageWidth, d.PageHeight
	}
	if c.Margin < 0 || 2*c.Margin >= math.Min(c.PageWidth, c.PageHeight) {
		c.Margin = d.Margin
	}
	if c.TitleHeight <= 0 {
		c.TitleHeight = d.TitleHeight
	}
	if c.LineHeight <= 0 {
		c.LineHeight = d.LineHeight
	}
	if c.ImageSpacing < 0 {
		c.ImageSpacing = 0
	}
	if c.GroupSpacing < 0 {
		c.GroupSpacing = 0
	}
	if c.MinContentReservation < 0 {
		c.MinContentReservation = 0
	}
	return c
}

// ContentWidth is the usable width between the side margins.
func (c Config) ContentWidth() float64 { return c.PageWidth - 2*c.Margin }

// ContentHeight is the usable height between the top and bottom margins.
func (c Config) ContentHeight() float64 { return c.PageHeight - 2*c.Margin }

// Header is the optional document header printed under the title.
type Header struct {
	SubjectName string
	PeriodLabel string
}

// expenseHeaderLines is the number of text lines in an expense header block.
const expenseHeaderLines = 3

type composer struct {
	cfg  Config
	doc  *Document
	y    float64
	used map[string]bool
}

// Compose lays out the document. Expenses appear in input order; an expense
// with no fetched image is skipped without a header. Receipts are placed in
// the order given by groups, each at most once.
func Compose(
	expenses []entity.ExpenseHeader,
	groups map[string][]entity.ReceiptRef,
	images map[string]*entity.FetchedImage,
	header Header,
	cfg Config,
) *Document {
	cfg = cfg.withDefaults()
	c := &composer{
		cfg:  cfg,
		doc:  &Document{PageWidth: cfg.PageWidth, PageHeight: cfg.PageHeight},
		used: make(map[string]bool),
	}
	c.newPage()

	c.text(cfg.Title, StyleTitle, cfg.TitleHeight, "")
	if header.SubjectName != "" {
		c.text("Name: "+header.SubjectName, StyleSubtitle, cfg.LineHeight, "")
	}
	if header.PeriodLabel != "" {
		c.text("Period: "+header.PeriodLabel, StyleSubtitle, cfg.LineHeight, "")
	}
	c.y += cfg.GroupSpacing

	for _, exp := range expenses {
		refs := groups[exp.ID]
		summary := GroupSummary{ExpenseID: exp.ID, JobNo: exp.JobNo, Resolved: len(refs)}

		var placeable []*entity.FetchedImage
		for _, ref := range refs {
			img, ok := images[ref.ID]
			if !ok || img == nil || img.AspectRatio() == 0 || c.used[ref.ID] {
				continue
			}
			c.used[ref.ID] = true
			placeable = append(placeable, img)
		}

		switch {
		case len(refs) == 0:
			summary.Status = constants.GroupNoReceipts
		case len(placeable) == 0:
			summary.Status = constants.GroupAllFetchesFailed
		default:
			summary.Status = constants.GroupIncluded
			summary.Placed = c.group(exp, placeable)
		}
		c.doc.Groups = append(c.doc.Groups, summary)
	}
	return c.doc
}

func (c *composer) top() float64       { return c.cfg.Margin }
func (c *composer) bottom() float64    { return c.cfg.PageHeight - c.cfg.Margin }
func (c *composer) remaining() float64 { return math.Max(0, c.bottom()-c.y) }

func (c *composer) page() *Page { return &c.doc.Pages[len(c.doc.Pages)-1] }

func (c *composer) pageHasContent() bool { return len(c.page().Elements) > 0 }

func (c *composer) newPage() {
	c.doc.Pages = append(c.doc.Pages, Page{})
	c.y = c.top()
}

func (c *composer) text(s string, style TextStyle, h float64, expenseID string) {
	c.page().Elements = append(c.page().Elements, Element{
		Kind:      ElementText,
		X:         c.cfg.Margin,
		Y:         c.y,
		W:         c.cfg.ContentWidth(),
		H:         h,
		Text:      s,
		Style:     style,
		ExpenseID: expenseID,
	})
	c.y += h
}

// naturalHeight is the image height when scaled to the content width.
func (c *composer) naturalHeight(img *entity.FetchedImage) float64 {
	return c.cfg.ContentWidth() * img.AspectRatio()
}

func (c *composer) group(exp entity.ExpenseHeader, imgs []*entity.FetchedImage) int {
	cfg := c.cfg
	headerH := expenseHeaderLines * cfg.LineHeight
	// The header moves with its first image: room is needed for the image at
	// full size, capped at what a fresh page offers below the header.
	first := math.Min(c.naturalHeight(imgs[0]), cfg.ContentHeight()-headerH)
	need := headerH + math.Max(first, cfg.MinContentReservation)
	if c.remaining() < need && c.pageHasContent() {
		c.newPage()
	}
	headerLeadsPage := !c.pageHasContent()

	c.text(headingLine(exp), StyleHeading, cfg.LineHeight, exp.ID)
	c.text(dateLine(exp), StyleBody, cfg.LineHeight, exp.ID)
	c.text("Details: "+exp.Details, StyleBody, cfg.LineHeight, exp.ID)

	for i, img := range imgs {
		h := c.naturalHeight(img)
		// Only this expense's header above it: breaking would orphan the header.
		alone := i == 0 && headerLeadsPage
		if h > c.remaining() && !alone {
			c.newPage()
		}
		c.image(exp.ID, img, h)
	}
	c.y += cfg.GroupSpacing
	return len(imgs)
}

// image places img at the cursor, scaled down when its natural height does
// not fit in what is left of the page.
func (c *composer) image(expenseID string, img *entity.FetchedImage, h float64) {
	w := c.cfg.ContentWidth()
	if avail := c.remaining(); h > avail {
		h = avail
		w = h / img.AspectRatio()
	}
	c.page().Elements = append(c.page().Elements, Element{
		Kind:      ElementImage,
		X:         c.cfg.Margin + (c.cfg.ContentWidth()-w)/2,
		Y:         c.y,
		W:         w,
		H:         h,
		ExpenseID: expenseID,
		ReceiptID: img.ReceiptID,
		Image:     img,
	})
	c.y += h + c.cfg.ImageSpacing
}

func headingLine(exp entity.ExpenseHeader) string {
	if exp.JobNo == "" {
		return "Job No: n/a"
	}
	return fmt.Sprintf("Job No: %s", exp.JobNo)
}

func dateLine(exp entity.ExpenseHeader) string {
	if exp.Date == nil {
		return "Date: n/a"
	}
	return "Date: " + exp.Date.Format("2006-01-02")
}
