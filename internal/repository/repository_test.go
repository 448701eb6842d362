package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenLocal(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open local db: %v", err)
	}
	t.Cleanup(func() { Close(db, nil) })
	return db
}

func exec(t *testing.T, db *DB, q string, args ...any) {
	t.Helper()
	if _, err := db.SQL.Exec(q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

func seedUser(t *testing.T, db *DB, id string, admin bool) {
	t.Helper()
	exec(t, db, `INSERT INTO profiles (id, full_name, is_admin) VALUES ($1, $2, $3)`, id, "User "+id, admin)
}

func seedExpense(t *testing.T, db *DB, id, userID string) {
	t.Helper()
	exec(t, db, `INSERT INTO expenses (id, user_id, job_no, details) VALUES ($1, $2, $3, $4)`, id, userID, "J-"+id, "details")
}

func seedReceipt(t *testing.T, db *DB, id, expenseID string, created time.Time) {
	t.Helper()
	exec(t, db, `INSERT INTO receipts (id, expense_id, storage_path, created_at) VALUES ($1, $2, $3, $4)`,
		id, expenseID, "u/"+id+".jpg", created.UTC().Format(time.RFC3339Nano))
}

func TestSessionIssueAndVerify(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1", false)
	repo := NewSessionRepository(db, nil)
	ctx := context.Background()

	token, err := repo.Issue(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, err := repo.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != "u1" {
		t.Fatalf("expected u1, got %q", id.UserID)
	}

	if _, err := repo.Verify(ctx, "not-a-token"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown token, got %v", err)
	}
	if _, err := repo.Verify(ctx, ""); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}

func TestSessionVerifyExpired(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u2", false)
	exec(t, db, `INSERT INTO auth_sessions (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		hashToken("stale"), "u2", time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano))

	_, err := NewSessionRepository(db, nil).Verify(context.Background(), "stale")
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestProfileIsPrivileged(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "admin", true)
	seedUser(t, db, "plain", false)
	repo := NewProfileRepository(db, nil)
	ctx := context.Background()

	cases := []struct {
		user string
		want bool
	}{
		{"admin", true},
		{"plain", false},
		{"missing", false},
	}
	for _, tc := range cases {
		got, err := repo.IsPrivileged(ctx, entity.Identity{UserID: tc.user})
		if err != nil {
			t.Fatalf("IsPrivileged(%s): %v", tc.user, err)
		}
		if got != tc.want {
			t.Fatalf("IsPrivileged(%s) = %v, want %v", tc.user, got, tc.want)
		}
	}
}

func TestRestrictedClientOnlySeesOwnReceipts(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", false)
	seedUser(t, db, "bob", false)
	seedExpense(t, db, "ea", "alice")
	seedExpense(t, db, "eb", "bob")
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seedReceipt(t, db, "ra2", "ea", base.Add(time.Hour))
	seedReceipt(t, db, "ra1", "ea", base)
	seedReceipt(t, db, "rb1", "eb", base)

	refs, err := NewRestrictedClient(db, "alice", nil).ReceiptsFor(context.Background(), []string{"ea", "eb"})
	if err != nil {
		t.Fatalf("ReceiptsFor: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 receipts for alice, got %d", len(refs))
	}
	if refs[0].ID != "ra1" || refs[1].ID != "ra2" {
		t.Fatalf("unexpected order: %s, %s", refs[0].ID, refs[1].ID)
	}
	if !refs[0].CreatedAt.Equal(base) {
		t.Fatalf("created_at not round-tripped: %v", refs[0].CreatedAt)
	}
	if refs[0].StoragePath != "u/ra1.jpg" {
		t.Fatalf("unexpected storage path %q", refs[0].StoragePath)
	}
}

func TestPrivilegedClientScopesToSubject(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", false)
	seedUser(t, db, "bob", false)
	seedExpense(t, db, "ea", "alice")
	seedExpense(t, db, "eb", "bob")
	now := time.Now()
	seedReceipt(t, db, "ra1", "ea", now)
	seedReceipt(t, db, "rb1", "eb", now)
	ctx := context.Background()

	all, err := NewPrivilegedClient(db, "", nil).ReceiptsFor(ctx, []string{"ea", "eb"})
	if err != nil {
		t.Fatalf("ReceiptsFor: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected unscoped lookup to see 2 receipts, got %d", len(all))
	}

	scoped, err := NewPrivilegedClient(db, "bob", nil).ReceiptsFor(ctx, []string{"ea", "eb"})
	if err != nil {
		t.Fatalf("ReceiptsFor: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != "rb1" {
		t.Fatalf("expected only bob's receipt, got %+v", scoped)
	}
}

func TestReceiptsForEmptyInput(t *testing.T) {
	db := openTestDB(t)
	refs, err := NewRestrictedClient(db, "anyone", nil).ReceiptsFor(context.Background(), nil)
	if err != nil || refs != nil {
		t.Fatalf("expected nil, nil; got %v, %v", refs, err)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(2, 3); got != "$2, $3, $4" {
		t.Fatalf("placeholders(2,3) = %q", got)
	}
}
