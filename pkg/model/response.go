package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// ErrNonTextPayload is returned by Document when the response payload is
// not text-shaped. Asking for a parsed document on a JSON payload is a
// usage error, not a transport error.
var ErrNonTextPayload = errors.New("cannot parse document from non-text payload")

// Response is the result of one fetch cycle. It back-references the
// originating Request and does not outlive the processing of that cycle:
// the callback consumes it and it is gone.
type Response struct {
	// Request is the request that produced this response.
	Request *Request

	// Data is the decoded payload: a string for text content, a generic
	// JSON value otherwise. Nil on degraded responses without a body.
	Data any

	// StatusCode is the HTTP status of the final attempt.
	StatusCode int

	// Headers are the response headers of the final attempt.
	Headers http.Header

	docOnce sync.Once
	doc     *goquery.Document
	docErr  error
}

// OK reports whether the response carries a successful status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the payload as a string, if it is text-shaped.
func (r *Response) Text() (string, bool) {
	s, ok := r.Data.(string)
	return s, ok
}

// JSON returns the payload as a decoded JSON object, if it is one.
func (r *Response) JSON() (map[string]any, bool) {
	m, ok := r.Data.(map[string]any)
	return m, ok
}

// Document returns the payload parsed as an HTML document. The parse runs
// at most once per response; subsequent calls return the cached document.
// Returns ErrNonTextPayload when the payload is not text-shaped.
func (r *Response) Document() (*goquery.Document, error) {
	r.docOnce.Do(func() {
		s, ok := r.Data.(string)
		if !ok {
			r.docErr = fmt.Errorf("%w: payload is %T", ErrNonTextPayload, r.Data)
			return
		}
		r.doc, r.docErr = goquery.NewDocumentFromReader(strings.NewReader(s))
	})
	return r.doc, r.docErr
}
