package resolver

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/repository"
)

// Groups maps an expense id to its receipts in creation order. Expenses
// without receipts are absent.
type Groups map[string][]entity.ReceiptRef

// Count returns the total number of receipts across all groups.
func (g Groups) Count() int {
	n := 0
	for _, refs := range g {
		n += len(refs)
	}
	return n
}

// Flatten lists receipts following expenseIDs order, then creation order.
func (g Groups) Flatten(expenseIDs []string) []entity.ReceiptRef {
	out := make([]entity.ReceiptRef, 0, g.Count())
	seen := make(map[string]struct{}, len(expenseIDs))
	for _, id := range expenseIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, g[id]...)
	}
	return out
}

type Resolver struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve issues a single lookup for all expenseIDs and groups the result.
func (r *Resolver) Resolve(ctx context.Context, lookup repository.ReceiptLookup, expenseIDs []string) (Groups, error) {
	log := common.LoggerFrom(ctx, r.logger)
	start := time.Now()

	ids := dedupe(expenseIDs)
	if len(ids) == 0 {
		return Groups{}, nil
	}

	refs, err := lookup.ReceiptsFor(ctx, ids)
	if err != nil {
		log.Error("resolve.lookup_failed", "expenses", len(ids), "error", err)
		return nil, common.NewKindError(common.KindResolveFailure, "receipt lookup failed", err)
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	groups := make(Groups)
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := wanted[ref.ExpenseID]; !ok {
			continue
		}
		if _, dup := seen[ref.ID]; dup {
			continue
		}
		seen[ref.ID] = struct{}{}
		groups[ref.ExpenseID] = append(groups[ref.ExpenseID], ref)
	}
	for _, refs := range groups {
		sort.SliceStable(refs, func(i, j int) bool {
			if refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
				return refs[i].ID < refs[j].ID
			}
			return refs[i].CreatedAt.Before(refs[j].CreatedAt)
		})
	}

	log.Info("resolve.ok",
		"expenses", len(ids),
		"expenses_with_receipts", len(groups),
		"receipts", groups.Count(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return groups, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
