// Package export persists compiled documents and issues their retrieval handles.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-compiler/constants"
	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/layout"
	"github.com/joseph-ayodele/receipts-compiler/internal/objectstore"
	"github.com/joseph-ayodele/receipts-compiler/internal/render"
)

const DefaultHandleTTL = time.Hour

type Config struct {
	Bucket    string
	HandleTTL time.Duration
	// Manifest also writes an XLSX summary next to the document.
	Manifest bool
}

type Persister struct {
	store   objectstore.Store
	encoder render.Encoder
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

func NewPersister(store objectstore.Store, encoder render.Encoder, cfg Config, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandleTTL <= 0 {
		cfg.HandleTTL = DefaultHandleTTL
	}
	return &Persister{store: store, encoder: encoder, cfg: cfg, logger: logger, now: time.Now}
}

// Input is one finished compilation ready to be stored.
type Input struct {
	Document    *layout.Document
	RunID       string
	SubjectName string
	PeriodLabel string
}

// Persist encodes the document, writes it under a fresh key and returns a
// handle valid for the configured TTL. Any failure is PersistFailed.
func (p *Persister) Persist(ctx context.Context, in Input) (entity.RetrievalHandle, error) {
	log := common.LoggerFrom(ctx, p.logger)
	start := time.Now()
	now := p.now().UTC()

	data, err := p.encoder.Encode(in.Document)
	if err != nil {
		log.Error("persist.encode_failed", "error", err)
		return entity.RetrievalHandle{}, common.NewKindError(common.KindPersistFailed, "encode document", err)
	}

	base := ObjectKeyBase(now, in.RunID, in.PeriodLabel)
	key := base + "." + p.encoder.Extension()
	if err := p.store.Put(ctx, p.cfg.Bucket, key, data, p.encoder.ContentType()); err != nil {
		log.Error("persist.put_failed", "bucket", p.cfg.Bucket, "key", key, "error", err)
		return entity.RetrievalHandle{}, common.NewKindError(common.KindPersistFailed, "write document", err)
	}

	filename := Filename(in.SubjectName, in.PeriodLabel, p.encoder.Extension())
	url, err := p.store.RetrievalURL(ctx, p.cfg.Bucket, key, p.cfg.HandleTTL, filename)
	if err != nil {
		log.Error("persist.url_failed", "bucket", p.cfg.Bucket, "key", key, "error", err)
		return entity.RetrievalHandle{}, common.NewKindError(common.KindPersistFailed, "issue retrieval url", err)
	}

	handle := entity.RetrievalHandle{
		DownloadURL: url,
		Filename:    filename,
		ObjectKey:   key,
		ExpiresAt:   now.Add(p.cfg.HandleTTL),
	}
	if p.cfg.Manifest {
		handle.ManifestURL = p.writeManifest(ctx, log, in, base, now)
	}

	log.Info("persist.ok",
		"bucket", p.cfg.Bucket,
		"key", key,
		"bytes", len(data),
		"filename", filename,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return handle, nil
}

// writeManifest stores the XLSX summary and returns its URL. The manifest is
// optional, so failures are logged and yield an empty URL.
func (p *Persister) writeManifest(ctx context.Context, log *slog.Logger, in Input, base string, now time.Time) string {
	data, err := BuildManifest(in.Document, ManifestInfo{
		RunID:       in.RunID,
		SubjectName: in.SubjectName,
		PeriodLabel: in.PeriodLabel,
		CreatedAt:   now,
	}, p.logger)
	if err != nil {
		log.Warn("persist.manifest_failed", "stage", "build", "error", err)
		return ""
	}
	key := base + ".xlsx"
	if err := p.store.Put(ctx, p.cfg.Bucket, key, data, constants.ContentTypeXLSX); err != nil {
		log.Warn("persist.manifest_failed", "stage", "put", "key", key, "error", err)
		return ""
	}
	url, err := p.store.RetrievalURL(ctx, p.cfg.Bucket, key, p.cfg.HandleTTL,
		Filename(in.SubjectName, in.PeriodLabel, "xlsx"))
	if err != nil {
		log.Warn("persist.manifest_failed", "stage", "url", "key", key, "error", err)
		return ""
	}
	return url
}

// ObjectKeyBase builds "compilations/<yyyy>/<mm>/<timestamp>-<run>-<label>"
// so concurrent runs never share a key.
func ObjectKeyBase(now time.Time, runID, periodLabel string) string {
	if runID == "" {
		runID = uuid.NewString()
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	label := slug(periodLabel, '-')
	if label == "" {
		label = "export"
	}
	return fmt.Sprintf("compilations/%s/%s-%s-%s",
		now.Format("2006/01"), now.Format("20060102T150405Z"), short, strings.ToLower(label))
}

// Filename derives the suggested download name from subject name and period label.
func Filename(subjectName, periodLabel, ext string) string {
	parts := []string{"Receipts"}
	if s := slug(subjectName, '_'); s != "" {
		parts = append(parts, s)
	}
	if s := slug(periodLabel, '_'); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "_") + "." + ext
}

// slug keeps letters and digits, turning any other run of characters into a
// single sep.
func slug(s string, sep rune) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteRune(sep)
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
