// Package fetch downloads receipt images under a concurrency bound, a
// per-receipt timeout and a size cap. Individual failures are logged and
// dropped; they never fail the batch.
package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/objectstore"
)

const (
	DefaultWorkers     = 8
	DefaultTimeout     = 10 * time.Second
	DefaultMaxBytes    = 8 << 20
	DefaultMaxReceipts = 150
	DefaultURLTTL      = 5 * time.Minute
)

// URLIssuer is the part of the object store the fetcher needs.
type URLIssuer interface {
	RetrievalURL(ctx context.Context, bucket, key string, ttl time.Duration, filename string) (string, error)
}

var _ URLIssuer = (objectstore.Store)(nil)

type Fetcher struct {
	store       URLIssuer
	bucket      string
	http        *http.Client
	logger      *slog.Logger
	workers     int
	timeout     time.Duration
	maxBytes    int64
	maxReceipts int
	urlTTL      time.Duration
}

type Option func(*Fetcher)

func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

func WithMaxReceipts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxReceipts = n
		}
	}
}

func WithURLTTL(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.urlTTL = d
		}
	}
}

// WithHTTPClient replaces the client used for downloads. Its own Timeout is
// left alone; per-receipt deadlines come from WithTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.http = c
		}
	}
}

func New(store URLIssuer, bucket string, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		store:       store,
		bucket:      bucket,
		http:        &http.Client{},
		logger:      logger,
		workers:     DefaultWorkers,
		timeout:     DefaultTimeout,
		maxBytes:    DefaultMaxBytes,
		maxReceipts: DefaultMaxReceipts,
		urlTTL:      DefaultURLTTL,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// FetchAll downloads every receipt and returns the successes keyed by receipt
// id. Receipts past the configured cap are dropped with a warning.
func (f *Fetcher) FetchAll(ctx context.Context, receipts []entity.ReceiptRef) map[string]*entity.FetchedImage {
	log := common.LoggerFrom(ctx, f.logger)
	start := time.Now()

	if len(receipts) > f.maxReceipts {
		log.Warn("fetch.cap_exceeded",
			"requested", len(receipts),
			"max_receipts", f.maxReceipts,
			"dropped", len(receipts)-f.maxReceipts,
		)
		receipts = receipts[:f.maxReceipts]
	}

	slots, poolErr := runPool(ctx, f.workers, len(receipts), func(ctx context.Context, i int) *entity.FetchedImage {
		img, err := f.fetchOne(ctx, receipts[i])
		if err != nil {
			log.Warn("fetch.receipt.skipped",
				"receipt_id", receipts[i].ID,
				"expense_id", receipts[i].ExpenseID,
				"reason", reason(err),
				"error", err,
			)
			return nil
		}
		return img
	})

	if poolErr != nil {
		log.Warn("fetch.interrupted", "error", poolErr)
	}

	out := make(map[string]*entity.FetchedImage, len(slots))
	var bytesTotal int
	for _, img := range slots {
		if img == nil {
			continue
		}
		out[img.ReceiptID] = img
		bytesTotal += len(img.Data)
	}

	log.Info("fetch.done",
		"requested", len(receipts),
		"fetched", len(out),
		"skipped", len(receipts)-len(out),
		"bytes", bytesTotal,
		"workers", f.workers,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, ref entity.ReceiptRef) (*entity.FetchedImage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	u, err := f.store.RetrievalURL(ctx, f.bucket, ref.StoragePath, f.urlTTL, "")
	if err != nil {
		return nil, &fetchError{stage: "url", err: err}
	}
	data, declared, err := download(ctx, f.http, u, f.maxBytes, common.LoggerFrom(ctx, f.logger))
	if err != nil {
		return nil, err
	}
	img, err := normalize(data, declared)
	if err != nil {
		return nil, err
	}
	img.ReceiptID = ref.ID
	return img, nil
}
