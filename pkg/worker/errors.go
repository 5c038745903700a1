package worker

import (
	"errors"
	"fmt"

	"github.com/dataservice-go/dataservice/pkg/model"
)

// Input errors fatal to a run or to a single work item.
var (
	// ErrNoRequests is returned when Run is given an empty seed set.
	ErrNoRequests = errors.New("no requests to process")

	// ErrUnknownItemType marks a work item that is neither a request nor a
	// data record. This is a programming error in the producing callback.
	ErrUnknownItemType = errors.New("unknown item type")
)

// ItemError records the failure of one work item. Failures are collected in
// the run result so no fetch failure vanishes silently.
type ItemError struct {
	// Request is the failed request, when the item was one.
	Request *model.Request

	// Item is the offending value for non-request failures.
	Item any

	Err error
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	if e.Request != nil {
		return fmt.Sprintf("request %s: %v", e.Request.URL, e.Err)
	}
	return fmt.Sprintf("work item %T: %v", e.Item, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ItemError) Unwrap() error {
	return e.Err
}
