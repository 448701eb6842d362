package access

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/repository"
)

type fakeVerifier struct {
	tokens map[string]string
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (entity.Identity, error) {
	f.calls++
	if f.err != nil {
		return entity.Identity{}, f.err
	}
	if uid, ok := f.tokens[token]; ok {
		return entity.Identity{UserID: uid}, nil
	}
	return entity.Identity{}, fmt.Errorf("invalid token: %w", common.ErrUnauthorized)
}

type fakeProfiles struct {
	admins map[string]bool
	err    error
	calls  int
}

func (f *fakeProfiles) IsPrivileged(_ context.Context, id entity.Identity) (bool, error) {
	f.calls++
	return f.admins[id.UserID], f.err
}

func newTestGate() (*Gate, *fakeVerifier, *fakeProfiles) {
	v := &fakeVerifier{tokens: map[string]string{"tok-admin": "admin", "tok-user": "user"}}
	p := &fakeProfiles{admins: map[string]bool{"admin": true}}
	return NewGate(v, p, Datastores{}, nil), v, p
}

func TestAuthorizeSelfService(t *testing.T) {
	gate, _, profiles := newTestGate()
	for _, subject := range []string{"", "user"} {
		grant, err := gate.Authorize(context.Background(), "tok-user", subject)
		if err != nil {
			t.Fatalf("Authorize(subject=%q): %v", subject, err)
		}
		if grant.Scope() != ScopeSelf || grant.SubjectID() != "user" {
			t.Fatalf("unexpected grant scope=%s subject=%s", grant.Scope(), grant.SubjectID())
		}
		if _, ok := grant.Receipts().(*repository.RestrictedClient); !ok {
			t.Fatalf("self-service grant must carry a restricted client, got %T", grant.Receipts())
		}
	}
	if profiles.calls != 0 {
		t.Fatalf("self-service must not consult profiles, got %d calls", profiles.calls)
	}
}

func TestAuthorizeAdministrative(t *testing.T) {
	gate, _, _ := newTestGate()
	grant, err := gate.Authorize(context.Background(), "tok-admin", "user")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if grant.Scope() != ScopeAdministrative || grant.SubjectID() != "user" {
		t.Fatalf("unexpected grant scope=%s subject=%s", grant.Scope(), grant.SubjectID())
	}
	if grant.Identity().UserID != "admin" {
		t.Fatalf("grant identity should be the caller, got %q", grant.Identity().UserID)
	}
	if _, ok := grant.Receipts().(*repository.PrivilegedClient); !ok {
		t.Fatalf("administrative grant must carry a privileged client, got %T", grant.Receipts())
	}
}

func TestAuthorizeFailures(t *testing.T) {
	cases := []struct {
		name    string
		token   string
		subject string
		setup   func(*fakeVerifier, *fakeProfiles)
		want    common.Kind
	}{
		{name: "unknown token", token: "nope", want: common.KindUnauthenticated},
		{name: "empty token", token: "", want: common.KindUnauthenticated},
		{name: "verifier down", token: "tok-user", want: common.KindUnauthenticated,
			setup: func(v *fakeVerifier, _ *fakeProfiles) { v.err = errors.New("connection refused") }},
		{name: "cross-user without flag", token: "tok-user", subject: "someone-else", want: common.KindForbidden},
		{name: "profile lookup fails", token: "tok-admin", subject: "user", want: common.KindForbidden,
			setup: func(_ *fakeVerifier, p *fakeProfiles) { p.err = errors.New("timeout") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate, v, p := newTestGate()
			if tc.setup != nil {
				tc.setup(v, p)
			}
			grant, err := gate.Authorize(context.Background(), tc.token, tc.subject)
			if grant != nil {
				t.Fatalf("expected no grant, got %+v", grant)
			}
			if got := common.KindOf(err); got != tc.want {
				t.Fatalf("kind = %s, want %s (err=%v)", got, tc.want, err)
			}
		})
	}
}

func TestAuthorizeReverifiesEveryCall(t *testing.T) {
	gate, v, p := newTestGate()
	for i := 0; i < 3; i++ {
		if _, err := gate.Authorize(context.Background(), "tok-admin", "user"); err != nil {
			t.Fatalf("Authorize #%d: %v", i, err)
		}
	}
	if v.calls != 3 || p.calls != 3 {
		t.Fatalf("expected 3 verifications and 3 privilege checks, got %d and %d", v.calls, p.calls)
	}
}

func TestScopeFor(t *testing.T) {
	if ScopeFor("a", "") != ScopeSelf || ScopeFor("a", "a") != ScopeSelf {
		t.Fatalf("own exports must be self-service")
	}
	if ScopeFor("a", "b") != ScopeAdministrative {
		t.Fatalf("cross-user exports must be administrative")
	}
}
