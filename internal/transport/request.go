package transport

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/errors"
)

// Request describes one logical API call. The client may send it several times.
type Request struct {
	Method string
	// Path is relative to the client base URL unless it is absolute.
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Get builds a GET request.
func Get(path string, query url.Values) Request {
	return Request{Method: http.MethodGet, Path: path, Query: query}
}

// Post builds a POST request with a JSON body.
func Post(path string, body any) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body}
}

// Patch builds a PATCH request with a JSON body.
func Patch(path string, body any) Request {
	return Request{Method: http.MethodPatch, Path: path, Body: body}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
	Attempts   int
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into target.
func (r *Response) Decode(target any) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return errors.WrapParse("json", r.URL, err)
	}
	return nil
}

// Snippet returns a bounded, single-line excerpt of the body for diagnostics.
func (r *Response) Snippet() string {
	s := strings.Join(strings.Fields(string(r.Body)), " ")
	if len(s) > 256 {
		cut := 256
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// resolve builds the absolute URL for r against base.
func resolve(base *url.URL, r Request) (*url.URL, error) {
	var u *url.URL
	if strings.HasPrefix(r.Path, "http://") || strings.HasPrefix(r.Path, "https://") {
		parsed, err := url.Parse(r.Path)
		if err != nil {
			return nil, errors.NewValidationError("path", r.Path, err.Error())
		}
		u = parsed
	} else {
		if base == nil {
			return nil, errors.NewValidationError("path", r.Path, "relative path without base URL")
		}
		u = base.JoinPath(r.Path)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// readBody reads and closes resp.Body. Bodies are capped so a misbehaving
// server cannot exhaust memory.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// drainLimit caps bodies of responses that will be retried.
const drainLimit = constants.MaxErrorBodySize
