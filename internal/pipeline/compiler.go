// Package pipeline runs one receipt compilation end to end: authorize,
// resolve, fetch, compose, persist.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-compiler/internal/access"
	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/events"
	"github.com/joseph-ayodele/receipts-compiler/internal/export"
	"github.com/joseph-ayodele/receipts-compiler/internal/layout"
	"github.com/joseph-ayodele/receipts-compiler/internal/repository"
	"github.com/joseph-ayodele/receipts-compiler/internal/resolver"
)

const DefaultTimeout = 3 * time.Minute

type Authorizer interface {
	Authorize(ctx context.Context, token, subjectID string) (*access.Grant, error)
}

type Resolver interface {
	Resolve(ctx context.Context, lookup repository.ReceiptLookup, expenseIDs []string) (resolver.Groups, error)
}

type Fetcher interface {
	FetchAll(ctx context.Context, receipts []entity.ReceiptRef) map[string]*entity.FetchedImage
}

type Persister interface {
	Persist(ctx context.Context, in export.Input) (entity.RetrievalHandle, error)
}

// Compiler coordinates the stages. Each stage only sees the previous
// stage's output.
type Compiler struct {
	gate      Authorizer
	resolver  Resolver
	fetcher   Fetcher
	persister Persister
	events    events.Publisher
	layout    layout.Config
	timeout   time.Duration
	logger    *slog.Logger
}

type Option func(*Compiler)

// WithTimeout bounds a whole run.
func WithTimeout(d time.Duration) Option {
	return func(c *Compiler) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLayout(cfg layout.Config) Option {
	return func(c *Compiler) { c.layout = cfg }
}

func WithPublisher(p events.Publisher) Option {
	return func(c *Compiler) {
		if p != nil {
			c.events = p
		}
	}
}

func NewCompiler(gate Authorizer, res Resolver, fetcher Fetcher, persister Persister, logger *slog.Logger, opts ...Option) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compiler{
		gate:      gate,
		resolver:  res,
		fetcher:   fetcher,
		persister: persister,
		events:    events.Noop{},
		layout:    layout.DefaultConfig(),
		timeout:   DefaultTimeout,
		logger:    logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result is the outcome of one run: either a handle or a failure kind.
type Result struct {
	Handle  *entity.RetrievalHandle
	Failure common.Kind
	Err     error
	RunID   string
}

func (r Result) OK() bool { return r.Handle != nil }

// Run compiles req and folds the outcome into a Result.
func (c *Compiler) Run(ctx context.Context, req entity.CompilationRequest) Result {
	runID := uuid.NewString()
	h, err := c.compile(common.WithRunID(ctx, runID), req)
	if err != nil {
		return Result{Failure: common.KindOf(err), Err: err, RunID: runID}
	}
	return Result{Handle: &h, RunID: runID}
}

// Compile is Run for callers that prefer an error return.
func (c *Compiler) Compile(ctx context.Context, req entity.CompilationRequest) (entity.RetrievalHandle, error) {
	if common.RunIDFromContext(ctx) == "" {
		ctx = common.WithRunID(ctx, uuid.NewString())
	}
	return c.compile(ctx, req)
}

func (c *Compiler) compile(ctx context.Context, req entity.CompilationRequest) (entity.RetrievalHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := common.LoggerFrom(ctx, c.logger)
	start := time.Now()
	log.Info("compile.start", "expenses", len(req.Expenses), "subject_id", req.SubjectID)

	fail := func(stage string, err error) (entity.RetrievalHandle, error) {
		log.Warn("compile.failed",
			"stage", stage,
			"kind", common.KindOf(err),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.RetrievalHandle{}, err
	}

	// Authorization precedes every lookup; the grant is the only way to a
	// receipt datastore.
	grant, err := c.gate.Authorize(ctx, req.AuthToken, req.SubjectID)
	if err != nil {
		return fail("authorize", err)
	}

	groups, err := c.resolver.Resolve(ctx, grant.Receipts(), req.ExpenseIDs())
	if err != nil {
		return fail("resolve", err)
	}
	refs := groups.Flatten(req.ExpenseIDs())
	if len(refs) == 0 {
		return fail("resolve", common.NewKindError(common.KindNoReceiptsAvailable, "no receipts attached to the requested expenses", nil))
	}

	images := c.fetcher.FetchAll(ctx, refs)
	if len(images) == 0 {
		return fail("fetch", common.NewKindError(common.KindNoReceiptsAvailable, "no receipt could be fetched", nil))
	}

	doc := layout.Compose(req.Expenses, groups, images, layout.Header{
		SubjectName: req.SubjectName,
		PeriodLabel: req.PeriodLabel,
	}, c.layout)
	log.Info("compile.composed",
		"pages", len(doc.Pages),
		"images", doc.ImageCount(),
		"skipped_expenses", doc.SkippedGroups(),
	)

	handle, err := c.persister.Persist(ctx, export.Input{
		Document:    doc,
		RunID:       common.RunIDFromContext(ctx),
		SubjectName: req.SubjectName,
		PeriodLabel: req.PeriodLabel,
	})
	if err != nil {
		return fail("persist", err)
	}

	if err := c.events.PublishExportCompleted(ctx, events.ExportCompleted{
		RunID:           common.RunIDFromContext(ctx),
		UserID:          grant.Identity().UserID,
		SubjectID:       grant.SubjectID(),
		ObjectKey:       handle.ObjectKey,
		Images:          doc.ImageCount(),
		SkippedExpenses: doc.SkippedGroups(),
		CompletedAt:     time.Now().UTC(),
	}); err != nil {
		log.Warn("compile.event_failed", "error", err)
	}

	log.Info("compile.ok",
		"scope", grant.Scope(),
		"receipts", len(refs),
		"images", doc.ImageCount(),
		"key", handle.ObjectKey,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return handle, nil
}
