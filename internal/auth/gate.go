// Package auth resolves bearer tokens to members and decides which actions
// they may perform.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/majmadigital/finance-ledger/internal/model"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type MemberLookup interface {
	Get(ctx context.Context, id string) (*model.Member, error)
}

type Identity struct {
	MemberID string
	Role     model.Role
}

type Gate struct {
	config  Config
	members MemberLookup
	policy  Policy
	now     func() time.Time
}

func NewGate(config Config, members MemberLookup, policy Policy) *Gate {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Gate{
		config:  config,
		members: members,
		policy:  policy,
		now:     time.Now,
	}
}

// Authenticate verifies an "Authorization: Bearer" value and loads the member
// it names. Any failure is reported as ErrUnauthenticated.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (*Identity, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(authorization), "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return g.config.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	member, err := g.members.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrMemberNotFound) {
			return nil, fmt.Errorf("%w: unknown member", ErrUnauthenticated)
		}
		return nil, err
	}

	return &Identity{MemberID: member.ID, Role: member.Role}, nil
}

func (g *Gate) Authorize(id *Identity, action Action) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if !g.policy.Allows(id.Role, action) {
		return fmt.Errorf("%w: role %s may not %s", ErrForbidden, id.Role, action)
	}
	return nil
}
