// Package access authenticates callers and hands out the datastore capability
// matching what they are allowed to do.
package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/repository"
)

// Scope is the kind of operation a caller asks to perform.
type Scope string

const (
	ScopeSelf           Scope = "self"
	ScopeAdministrative Scope = "administrative"
)

// TokenVerifier checks a bearer token with the authentication collaborator.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (entity.Identity, error)
}

// PrivilegeChecker reports whether an identity carries the administrator flag.
type PrivilegeChecker interface {
	IsPrivileged(ctx context.Context, identity entity.Identity) (bool, error)
}

// Datastores holds the two datastore handles. Privileged bypasses row-level
// restrictions and never leaves the Gate except wrapped in a Grant.
type Datastores struct {
	Restricted *repository.DB
	Privileged *repository.DB
}

// Gate authorizes every request afresh; it keeps no decision state.
type Gate struct {
	verifier TokenVerifier
	profiles PrivilegeChecker
	stores   Datastores
	logger   *slog.Logger
}

func NewGate(verifier TokenVerifier, profiles PrivilegeChecker, stores Datastores, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{verifier: verifier, profiles: profiles, stores: stores, logger: logger}
}

// Grant is the result of a successful authorization.
type Grant struct {
	identity  entity.Identity
	scope     Scope
	subjectID string
	receipts  repository.ReceiptLookup
}

func (g *Grant) Identity() entity.Identity { return g.identity }
func (g *Grant) Scope() Scope              { return g.scope }

// SubjectID is the user whose expenses are being exported.
func (g *Grant) SubjectID() string { return g.subjectID }

// Receipts returns the receipt lookup for the authorized scope.
func (g *Grant) Receipts() repository.ReceiptLookup { return g.receipts }

// ScopeFor derives the requested scope: exporting someone else's expenses is
// administrative, everything else is self-service.
func ScopeFor(callerID, subjectID string) Scope {
	if subjectID != "" && subjectID != callerID {
		return ScopeAdministrative
	}
	return ScopeSelf
}

// Authorize verifies token and, for administrative requests, the caller's
// administrator flag. It must run before any privileged lookup.
func (g *Gate) Authorize(ctx context.Context, token, subjectID string) (*Grant, error) {
	log := common.LoggerFrom(ctx, g.logger)

	identity, err := g.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			log.Warn("access.unauthenticated", "error", err)
			return nil, common.NewKindError(common.KindUnauthenticated, "token rejected", err)
		}
		// The verifier could not answer; the request still cannot proceed unauthenticated.
		log.Error("access.verify_failed", "error", err)
		return nil, common.NewKindError(common.KindUnauthenticated, "token verification unavailable", err)
	}

	scope := ScopeFor(identity.UserID, subjectID)
	if scope == ScopeSelf {
		log.Info("access.granted", "user_id", identity.UserID, "scope", scope)
		return &Grant{
			identity:  identity,
			scope:     scope,
			subjectID: identity.UserID,
			receipts:  repository.NewRestrictedClient(g.stores.Restricted, identity.UserID, g.logger),
		}, nil
	}

	admin, err := g.profiles.IsPrivileged(ctx, identity)
	if err != nil {
		log.Error("access.profile_lookup_failed", "user_id", identity.UserID, "error", err)
		return nil, common.NewKindError(common.KindForbidden, "privilege check failed", err)
	}
	if !admin {
		log.Warn("access.forbidden", "user_id", identity.UserID, "subject_id", subjectID)
		return nil, common.NewKindError(common.KindForbidden, "administrator flag required", common.ErrForbidden)
	}

	log.Info("access.granted", "user_id", identity.UserID, "scope", scope, "subject_id", subjectID)
	return &Grant{
		identity:  identity,
		scope:     scope,
		subjectID: subjectID,
		receipts:  repository.NewPrivilegedClient(g.stores.Privileged, subjectID, g.logger),
	}, nil
}
