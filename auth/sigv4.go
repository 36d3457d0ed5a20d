package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vantagebit/dynago/credentials"
	"github.com/vantagebit/dynago/transport"
)

const (
	sigv4Algorithm  = "AWS4-HMAC-SHA256"
	sigv4Terminator = "aws4_request"
	amzDateFormat   = "20060102T150405Z"
	shortDateFormat = "20060102"
	headerAmzDate   = "X-Amz-Date"
	headerAmzToken  = "X-Amz-Security-Token"
	headerAuthz     = "Authorization"
)

// SigV4 signs requests with the hmac-v4 scheme: a canonical request is
// hashed into a string-to-sign, signed with a date/region/service derived
// key, and the result placed in the Authorization header. Every AddAuth
// call recomputes the timestamp and signature; nothing is cached between
// attempts.
type SigV4 struct {
	mu       sync.RWMutex
	provider credentials.Provider
	host     string
	region   string
	service  string
	now      func() time.Time
}

// NewSigV4 constructs the signer, verifying that credentials are currently
// retrievable.
func NewSigV4(host, region, service string, provider credentials.Provider) (*SigV4, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil credentials provider", ErrNotReadyToAuthenticate)
	}
	if _, err := provider.Retrieve(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReadyToAuthenticate, err)
	}
	return &SigV4{
		provider: provider,
		host:     host,
		region:   region,
		service:  service,
		now:      time.Now,
	}, nil
}

// Capability declares the hmac-v4 scheme.
func (s *SigV4) Capability() []string {
	return []string{"hmac-v4"}
}

// UpdateProvider swaps the credentials provider, used after session renewal.
func (s *SigV4) UpdateProvider(p credentials.Provider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
}

// AddAuth stamps Host, X-Amz-Date, the optional security token and the
// Authorization header onto the request.
func (s *SigV4) AddAuth(req *transport.Request) error {
	s.mu.RLock()
	provider := s.provider
	s.mu.RUnlock()

	creds, err := provider.Retrieve()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReadyToAuthenticate, err)
	}

	now := s.now().UTC()
	amzDate := now.Format(amzDateFormat)
	shortDate := now.Format(shortDateFormat)

	req.SetHeader("Host", req.ServerName())
	req.SetHeader(headerAmzDate, amzDate)
	req.DelHeader(headerAmzToken)
	if creds.SessionToken != "" {
		req.SetHeader(headerAmzToken, creds.SessionToken)
	}
	req.DelHeader(headerAuthz)

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	canonicalRequest := strings.Join([]string{
		req.Method,
		req.AuthPath,
		req.CanonicalQuery(),
		canonicalHeaders,
		signedHeaders,
		hashHex(req.Body),
	}, "\n")

	scope := strings.Join([]string{shortDate, s.region, s.service, sigv4Terminator}, "/")
	stringToSign := strings.Join([]string{
		sigv4Algorithm,
		amzDate,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(s.signingKey(creds.SecretKey, shortDate), []byte(stringToSign)))
	req.SetHeader(headerAuthz, fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		sigv4Algorithm, creds.AccessKey, scope, signedHeaders, signature))
	return nil
}

// canonicalizeHeaders selects the signable headers (host, content-type and
// the x-amz-* family), lowercased and sorted.
func canonicalizeHeaders(req *transport.Request) (canonical, signed string) {
	names := make([]string, 0, len(req.Headers))
	values := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		lower := strings.ToLower(k)
		if lower == "host" || lower == "content-type" || strings.HasPrefix(lower, "x-amz-") {
			names = append(names, lower)
			values[lower] = strings.TrimSpace(v)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(values[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

func (s *SigV4) signingKey(secret, shortDate string) []byte {
	key := hmacSHA256([]byte("AWS4"+secret), []byte(shortDate))
	key = hmacSHA256(key, []byte(s.region))
	key = hmacSHA256(key, []byte(s.service))
	return hmacSHA256(key, []byte(sigv4Terminator))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
