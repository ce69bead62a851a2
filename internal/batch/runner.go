// Package batch applies one operation across a selection of keys, reporting
// per-item success, skip, and failure. One item's failure never aborts the
// batch and is never surfaced as an error from Run.
package batch

import (
	"context"

	"github.com/chun1617/kirman/internal/errors"
)

// FailedItem records one key whose action failed, with the normalized
// failure message.
type FailedItem struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Result is the aggregate outcome of one batch run. It is produced fresh per
// Run call and never mutated after return. The JSON field names are a
// contract with the UI.
type Result struct {
	SuccessCount int          `json:"successCount"`
	SkippedCount int          `json:"skippedCount"`
	FailedItems  []FailedItem `json:"failedItems"`
	AllSkipped   bool         `json:"allSkipped,omitempty"`
	Success      bool         `json:"success"`
}

// Processed returns how many keys were actually handed to the action. The
// caller clears its selection only when this is positive: a fully-skipped
// batch stays selected for retry, a partially-completed one must not re-offer
// already-handled items.
func (r Result) Processed() int {
	return r.SuccessCount + len(r.FailedItems)
}

// Action is the per-key operation. An error marks the key failed without
// stopping the batch.
type Action func(ctx context.Context, key string) error

// SkipPredicate reports keys that must be skipped (e.g. still cooling down).
type SkipPredicate func(key string) bool

const fallbackFailureMessage = "operation failed"

// Run applies action to keys strictly in the given order, one outstanding
// call at a time. When skip is non-nil and true for every key, Run returns
// immediately with AllSkipped set and Success false — the whole batch is
// retryable once the blocking condition lifts.
func Run(ctx context.Context, keys []string, action Action, skip SkipPredicate) Result {
	result := Result{FailedItems: []FailedItem{}}

	if len(keys) == 0 {
		result.Success = true
		return result
	}

	if skip != nil && allSkipped(keys, skip) {
		result.SkippedCount = len(keys)
		result.AllSkipped = true
		return result
	}

	for _, key := range keys {
		if skip != nil && skip(key) {
			result.SkippedCount++
			continue
		}
		if err := runIsolated(ctx, action, key); err != nil {
			result.FailedItems = append(result.FailedItems, FailedItem{
				Key:   key,
				Error: errors.Normalize(err, fallbackFailureMessage),
			})
			continue
		}
		result.SuccessCount++
	}

	result.Success = len(result.FailedItems) == 0
	return result
}

func allSkipped(keys []string, skip SkipPredicate) bool {
	for _, key := range keys {
		if !skip(key) {
			return false
		}
	}
	return true
}

// runIsolated confines a panicking action to its own key, so one bad item
// cannot take down the rest of the batch.
func runIsolated(ctx context.Context, action Action, key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError(fallbackFailureMessage, nil).WithContext("panic", r)
		}
	}()
	return action(ctx, key)
}
