// Package auth gates the tool routes behind a static shared secret and an
// optional Origin allow-list.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/localrivet/calcmcp/protocol"
)

// HeaderAPIKey is the request header carrying the shared secret.
const HeaderAPIKey = "X-API-Key"

// ErrNoAPIKey is the cause of the config error returned when the server has
// no secret configured.
var ErrNoAPIKey = errors.New("API_KEY is not set")

// Principal represents the authenticated caller.
type Principal interface {
	// GetSubject returns a unique identifier for the principal.
	GetSubject() string
}

// TokenValidator validates the credential presented with a request.
type TokenValidator interface {
	// ValidateToken returns the authenticated Principal, or a *protocol.Error
	// of kind KindAuth or KindConfig.
	ValidateToken(ctx context.Context, token string) (Principal, error)
}

// apiKeyPrincipal is the principal for callers holding the shared secret.
type apiKeyPrincipal struct{}

func (apiKeyPrincipal) GetSubject() string { return "api-key" }

// APIKeyValidator compares the presented key with the configured secret.
type APIKeyValidator struct {
	key []byte
}

// NewAPIKeyValidator creates a validator for key. An empty key makes every
// validation fail with a config error.
func NewAPIKeyValidator(key string) *APIKeyValidator {
	return &APIKeyValidator{key: []byte(key)}
}

// Configured reports whether a secret is set.
func (v *APIKeyValidator) Configured() bool {
	return len(v.key) > 0
}

// ValidateToken implements TokenValidator.
func (v *APIKeyValidator) ValidateToken(_ context.Context, token string) (Principal, error) {
	if !v.Configured() {
		return nil, protocol.Config(ErrNoAPIKey)
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), v.key) != 1 {
		return nil, protocol.Auth("Could not validate credentials")
	}
	return apiKeyPrincipal{}, nil
}

var _ TokenValidator = (*APIKeyValidator)(nil)

// OriginPolicy is a set of allowed Origin header values. A nil or empty
// policy allows every origin.
type OriginPolicy map[string]struct{}

// ParseOrigins builds an OriginPolicy from a comma-separated list. Entries
// are trimmed and blanks dropped; a list with no entries yields nil.
func ParseOrigins(list string) OriginPolicy {
	var p OriginPolicy
	for _, o := range strings.Split(list, ",") {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if p == nil {
			p = make(OriginPolicy)
		}
		p[o] = struct{}{}
	}
	return p
}

// Enabled reports whether the policy restricts origins.
func (p OriginPolicy) Enabled() bool {
	return len(p) > 0
}

// Check returns an auth error if origin is not allowed.
func (p OriginPolicy) Check(origin string) error {
	if !p.Enabled() {
		return nil
	}
	if _, ok := p[origin]; !ok || origin == "" {
		return protocol.Auth("Origin not allowed")
	}
	return nil
}

// Gate combines key validation and the origin policy.
type Gate struct {
	Validator TokenValidator
	Origins   OriginPolicy
}

// Check validates the API key first and the origin second. On success the
// returned context carries the principal.
func (g *Gate) Check(ctx context.Context, key, origin string) (context.Context, error) {
	if g.Validator == nil {
		return ctx, protocol.Config(ErrNoAPIKey)
	}
	principal, err := g.Validator.ValidateToken(ctx, key)
	if err != nil {
		return ctx, err
	}
	if err := g.Origins.Check(origin); err != nil {
		return ctx, err
	}
	return ContextWithPrincipal(ctx, principal), nil
}

type principalKeyType struct{}

var principalKey = principalKeyType{}

// ContextWithPrincipal returns a new context with the given Principal embedded.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext retrieves the Principal from the context, if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey).(Principal)
	return principal, ok
}
