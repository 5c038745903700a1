// Package model defines the work items that circulate through the crawl
// scheduler: requests, the responses they produce, and the data records
// yielded by user callbacks.
package model

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Method is the HTTP method of a Request.
type Method string

const (
	// MethodGet is a body-less GET request.
	MethodGet Method = "GET"

	// MethodPost is a POST request carrying form data or a JSON body.
	MethodPost Method = "POST"
)

// ContentType selects how a response payload is decoded.
type ContentType string

const (
	// ContentTypeText keeps the payload as a raw string.
	ContentTypeText ContentType = "text"

	// ContentTypeJSON decodes the payload into a generic JSON value.
	ContentTypeJSON ContentType = "json"
)

// Callback consumes a fetched Response and produces follow-up work. It may
// return nil, a single *Request, a single data record, a []any mixing both,
// or an iter.Seq[any]. NormalizeItems flattens all of these into one shape.
type Callback func(resp *Response) any

// Transport is the pluggable fetch capability. Implementations translate
// transport-level failures into the client package's failure taxonomy
// before returning.
type Transport interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// Validation errors returned by Request.Validate.
var (
	ErrMissingCallback = errors.New("request requires a callback")
	ErrInvalidURL      = errors.New("invalid request url")
)

// Request is the unit of fetch work. A Request is created by seed input or
// by a callback and is destroyed once its single fetch attempt sequence,
// retries included, completes.
type Request struct {
	// ID correlates log lines for one request. Assigned by Normalize when
	// empty.
	ID string

	// URL must be an absolute http or https URL.
	URL string

	// Method defaults to GET.
	Method Method

	// ContentType defaults to text.
	ContentType ContentType

	// Headers are sent verbatim on the outgoing request.
	Headers map[string]string

	// Params are merged into the URL query string.
	Params map[string]string

	// FormData is the form-encoded body for POST requests.
	FormData map[string]string

	// JSONData is the JSON body for POST requests.
	JSONData map[string]any

	// Callback is invoked exactly once per fetched response.
	Callback Callback

	// Client overrides the run's default transport for this request.
	Client Transport
}

// NewRequest returns a GET text request with an assigned ID. Callers set
// further fields directly on the returned value.
func NewRequest(rawURL string, callback Callback) *Request {
	r := &Request{URL: rawURL, Callback: callback}
	r.Normalize()
	return r
}

// Normalize fills zero-valued fields with their defaults.
func (r *Request) Normalize() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Method == "" {
		r.Method = MethodGet
	}
	if r.ContentType == "" {
		r.ContentType = ContentTypeText
	}
}

// Validate checks the request invariants: absolute http(s) URL, a callback,
// POST requires a body, GET must not carry one, and json content type
// requires a body to be present.
func (r *Request) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, r.URL)
	}
	if r.Callback == nil {
		return fmt.Errorf("%w: %s", ErrMissingCallback, r.URL)
	}
	hasBody := len(r.FormData) > 0 || len(r.JSONData) > 0
	switch r.Method {
	case MethodGet:
		if hasBody {
			return fmt.Errorf("GET request %s cannot have form data or json data", r.URL)
		}
	case MethodPost:
		if !hasBody {
			return fmt.Errorf("POST request %s requires either form data or json data", r.URL)
		}
	default:
		return fmt.Errorf("unsupported method %q for %s", r.Method, r.URL)
	}
	switch r.ContentType {
	case ContentTypeText:
	case ContentTypeJSON:
		if !hasBody {
			return fmt.Errorf("request %s has json content type but no form data or json data", r.URL)
		}
	default:
		return fmt.Errorf("unsupported content type %q for %s", r.ContentType, r.URL)
	}
	return nil
}
