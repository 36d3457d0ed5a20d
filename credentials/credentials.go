// Package credentials supplies provider credentials to the request signing
// pipeline. Providers can be re-derived on demand, which backs the session
// renewal path taken when the service reports an expired security token.
package credentials

import (
	"errors"
	"os"
	"sync"
)

// Environment variable names honored by EnvProvider.
const (
	EnvAccessKey     = "AWS_ACCESS_KEY_ID"
	EnvSecretKey     = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken  = "AWS_SESSION_TOKEN"
	EnvSecurityToken = "AWS_SECURITY_TOKEN"
)

// ErrNoCredentials indicates that no provider in scope could produce a key
// pair.
var ErrNoCredentials = errors.New("credentials: no valid credentials found")

// Credentials is an immutable set of signing credentials.
type Credentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// HasKeys reports whether both key halves are present.
func (c Credentials) HasKeys() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// Provider yields credentials on demand. Retrieve is called by the signer on
// every signing pass; Renew re-derives credentials after a session expiry and
// must be safe for concurrent use with Retrieve.
type Provider interface {
	Retrieve() (Credentials, error)
	Renew() (Credentials, error)
}

// StaticProvider returns a fixed set of credentials. Renew returns the same
// set; static keys have no session to refresh.
type StaticProvider struct {
	creds Credentials
}

// NewStatic builds a StaticProvider from explicit keys.
func NewStatic(accessKey, secretKey, sessionToken string) *StaticProvider {
	return &StaticProvider{creds: Credentials{
		AccessKey:    accessKey,
		SecretKey:    secretKey,
		SessionToken: sessionToken,
	}}
}

// Retrieve returns the fixed credentials.
func (p *StaticProvider) Retrieve() (Credentials, error) {
	if !p.creds.HasKeys() {
		return Credentials{}, ErrNoCredentials
	}
	return p.creds, nil
}

// Renew returns the fixed credentials unchanged.
func (p *StaticProvider) Renew() (Credentials, error) {
	return p.Retrieve()
}

// EnvProvider reads credentials from the process environment. Renew re-reads
// the environment, picking up tokens rotated by an external agent.
type EnvProvider struct {
	mu    sync.Mutex
	creds Credentials
	set   bool
}

// NewEnv builds an EnvProvider. Credentials are read lazily on first use.
func NewEnv() *EnvProvider {
	return &EnvProvider{}
}

// Retrieve returns cached credentials, reading the environment on first call.
func (p *EnvProvider) Retrieve() (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set {
		return p.reloadLocked()
	}
	return p.creds, nil
}

// Renew discards the cached credentials and re-reads the environment.
func (p *EnvProvider) Renew() (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloadLocked()
}

func (p *EnvProvider) reloadLocked() (Credentials, error) {
	token := os.Getenv(EnvSessionToken)
	if token == "" {
		token = os.Getenv(EnvSecurityToken)
	}
	creds := Credentials{
		AccessKey:    os.Getenv(EnvAccessKey),
		SecretKey:    os.Getenv(EnvSecretKey),
		SessionToken: token,
	}
	if !creds.HasKeys() {
		return Credentials{}, ErrNoCredentials
	}
	p.creds = creds
	p.set = true
	return creds, nil
}

// ChainProvider asks each provider in order and returns the first success.
// Renewal is forwarded to the provider that last produced credentials.
type ChainProvider struct {
	mu        sync.Mutex
	providers []Provider
	active    Provider
}

// NewChain builds a ChainProvider over the given providers.
func NewChain(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// Retrieve returns credentials from the first provider that succeeds.
func (p *ChainProvider) Retrieve() (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return p.active.Retrieve()
	}
	for _, candidate := range p.providers {
		creds, err := candidate.Retrieve()
		if err == nil {
			p.active = candidate
			return creds, nil
		}
	}
	return Credentials{}, ErrNoCredentials
}

// Renew re-derives credentials from the active provider, or re-runs the
// chain when none is active yet.
func (p *ChainProvider) Renew() (Credentials, error) {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active != nil {
		return active.Renew()
	}
	return p.Retrieve()
}
