package transport

import (
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Version is the library release carried in the User-Agent header.
const Version = "1.2.0"

// UserAgent is stamped on every outbound request during authorization.
const UserAgent = "dynago/" + Version + " (golang)"

// headerSafe is the set of characters left untouched when header values are
// percent-encoded before signing, in addition to the unreserved set.
const headerSafe = "!\"#$%&'()*+,/:;<=>?@[\\]^`{|}~"

// Signer adds authentication material to a request. Implementations must
// recompute time-bound signatures on every call; AddAuth is invoked once per
// attempt inside the retry loop.
type Signer interface {
	AddAuth(req *Request) error
}

// Request describes one outbound HTTP request: method, target, query
// parameters, headers and body. A Request is built per logical operation and
// must not be shared across concurrent executions; the executor clones it on
// entry so header mutation during authorization never leaks back to the
// caller or accumulates across retries.
type Request struct {
	Method string
	Scheme string
	Host   string
	Port   int
	Path   string
	// AuthPath is the path used for signature computation only. Defaults to
	// Path.
	AuthPath string
	Params   map[string]string
	Headers  map[string]string
	Body     []byte

	headersQuoted bool
}

// NewRequest builds a Request for the given target. A zero port selects the
// scheme default, an empty path becomes "/", and AuthPath defaults to the
// request path.
func NewRequest(method, scheme, host string, port int, path string) *Request {
	if path == "" {
		path = "/"
	}
	if port == 0 {
		if scheme == "http" {
			port = 80
		} else {
			port = 443
		}
	}
	return &Request{
		Method:   strings.ToUpper(method),
		Scheme:   scheme,
		Host:     host,
		Port:     port,
		Path:     path,
		AuthPath: path,
		Params:   make(map[string]string),
		Headers:  make(map[string]string),
	}
}

// SetHeader stores a header under its canonical MIME key.
func (r *Request) SetHeader(key, value string) {
	r.Headers[textproto.CanonicalMIMEHeaderKey(key)] = value
}

// Header returns the header value for key, matching case-insensitively.
func (r *Request) Header(key string) string {
	return r.Headers[textproto.CanonicalMIMEHeaderKey(key)]
}

// DelHeader removes a header, matching case-insensitively.
func (r *Request) DelHeader(key string) {
	delete(r.Headers, textproto.CanonicalMIMEHeaderKey(key))
}

// SetParam stores a query parameter.
func (r *Request) SetParam(key, value string) {
	r.Params[key] = value
}

// URL returns the canonical request URL including the explicit port and the
// encoded query string.
func (r *Request) URL() string {
	var b strings.Builder
	b.WriteString(r.Scheme)
	b.WriteString("://")
	b.WriteString(r.Host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(r.Port))
	b.WriteString(r.Path)
	if len(r.Params) > 0 {
		values := url.Values{}
		for k, v := range r.Params {
			values.Set(k, v)
		}
		b.WriteByte('?')
		b.WriteString(values.Encode())
	}
	return b.String()
}

// ServerName returns the host value used for signature computation: the bare
// host on default ports, host:port otherwise.
func (r *Request) ServerName() string {
	if (r.Scheme == "https" && r.Port == 443) || (r.Scheme == "http" && r.Port == 80) {
		return r.Host
	}
	return r.Host + ":" + strconv.Itoa(r.Port)
}

// CanonicalQuery returns the query parameters sorted and encoded the way the
// signature pipeline expects.
func (r *Request) CanonicalQuery() string {
	if len(r.Params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(r.Params[k]))
	}
	return strings.Join(pairs, "&")
}

// Clone returns a deep copy of the request with its own header and parameter
// maps. The body is shared; it is never mutated by the engine.
func (r *Request) Clone() *Request {
	clone := *r
	clone.Params = make(map[string]string, len(r.Params))
	for k, v := range r.Params {
		clone.Params[k] = v
	}
	clone.Headers = make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		clone.Headers[k] = v
	}
	return &clone
}

// Authorize prepares the request for one attempt: header values are
// percent-encoded exactly once for the request's lifetime, the User-Agent is
// stamped, the signer recomputes its time-bound signature, and the
// Content-Length header is derived from the body unless chunked transfer is
// active. Chunked Transfer-Encoding is only legal for PUT and is stripped
// from any other method. Safe to call once per attempt across retries.
func (r *Request) Authorize(signer Signer) error {
	if !r.headersQuoted {
		for k, v := range r.Headers {
			r.Headers[k] = quoteHeaderValue(v)
		}
		r.headersQuoted = true
	}

	r.SetHeader("User-Agent", UserAgent)

	if signer != nil {
		if err := signer.AddAuth(r); err != nil {
			return err
		}
	}

	if strings.EqualFold(r.Header("Transfer-Encoding"), "chunked") && r.Method != "PUT" {
		r.DelHeader("Transfer-Encoding")
	}
	if r.Header("Content-Length") == "" &&
		!strings.EqualFold(r.Header("Transfer-Encoding"), "chunked") {
		r.SetHeader("Content-Length", strconv.Itoa(len(r.Body)))
	}
	return nil
}

const upperhex = "0123456789ABCDEF"

// quoteHeaderValue percent-encodes a header value, leaving unreserved
// characters and the headerSafe set intact.
func quoteHeaderValue(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if isUnreserved(c) || strings.IndexByte(headerSafe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~'
}
