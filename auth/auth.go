// Package auth selects and implements request signers. Signers are chosen
// at connection construction time from an explicit registration table keyed
// by declared capability sets; lookup is a pure function over that table.
package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vantagebit/dynago/credentials"
	"github.com/vantagebit/dynago/transport"
)

// ErrNotReadyToAuthenticate indicates that no registered signer declares the
// required capabilities, or that none could be constructed from the
// available credentials.
var ErrNotReadyToAuthenticate = errors.New("auth: not ready to authenticate")

// Signer adds authentication headers to an outbound request. AddAuth is
// invoked once per attempt and must recompute time-bound material every
// call.
type Signer interface {
	transport.Signer
	Capability() []string
	UpdateProvider(p credentials.Provider)
}

// Factory constructs a signer for a target host.
type Factory func(host, region, service string, provider credentials.Provider) (Signer, error)

type registration struct {
	capabilities map[string]struct{}
	key          string
	factory      Factory
}

// Registry is an ordered table of signer factories keyed by capability set.
// Populate it at process start; it is not safe for concurrent mutation.
type Registry struct {
	entries []registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default returns a fresh registry with the built-in signers registered.
func Default() *Registry {
	r := NewRegistry()
	// Registration of built-ins cannot collide.
	_ = r.Register([]string{"hmac-v4"}, func(host, region, service string, provider credentials.Provider) (Signer, error) {
		return NewSigV4(host, region, service, provider)
	})
	return r
}

// Register adds a factory under its declared capability set. Registering
// the exact same capability set twice is rejected so lookup stays
// unambiguous.
func (r *Registry) Register(capabilities []string, factory Factory) error {
	if len(capabilities) == 0 {
		return errors.New("auth: signer must declare at least one capability")
	}
	key := capabilityKey(capabilities)
	for _, existing := range r.entries {
		if existing.key == key {
			return fmt.Errorf("auth: capability set %q already registered", key)
		}
	}
	set := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		set[c] = struct{}{}
	}
	r.entries = append(r.entries, registration{capabilities: set, key: key, factory: factory})
	return nil
}

// Select returns a signer for the first registered factory whose declared
// capability set is a superset of required and whose construction succeeds.
// Returns ErrNotReadyToAuthenticate when none qualifies.
func (r *Registry) Select(required []string, host, region, service string, provider credentials.Provider) (Signer, error) {
	var lastErr error
	for _, entry := range r.entries {
		if !covers(entry.capabilities, required) {
			continue
		}
		signer, err := entry.factory(host, region, service, provider)
		if err != nil {
			lastErr = err
			continue
		}
		return signer, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReadyToAuthenticate, lastErr)
	}
	return nil, fmt.Errorf("%w: no signer declares capabilities %v", ErrNotReadyToAuthenticate, required)
}

func covers(declared map[string]struct{}, required []string) bool {
	for _, c := range required {
		if _, ok := declared[c]; !ok {
			return false
		}
	}
	return true
}

func capabilityKey(capabilities []string) string {
	sorted := make([]string, len(capabilities))
	copy(sorted, capabilities)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
