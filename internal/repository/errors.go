package repository

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Error taxonomy surfaced to callers. Transient store failures are retried
// inside this package; everything else propagates unchanged.
var (
	// ErrNotFound reports a lookup that matched nothing.
	ErrNotFound = errors.New("repository: not found")

	// ErrAlreadyExists reports a conditional create that lost to an
	// existing item with the same key.
	ErrAlreadyExists = errors.New("repository: already exists")

	// ErrConflictingWrite reports an optimistic-concurrency failure on a
	// conditional write.
	ErrConflictingWrite = errors.New("repository: conflicting write")

	// ErrStoreUnavailable reports a transient store failure (throttling or
	// internal error). Retried with backoff before being surfaced.
	ErrStoreUnavailable = errors.New("repository: store unavailable")

	// ErrBadCursor reports an opaque pagination cursor that could not be
	// decoded.
	ErrBadCursor = errors.New("repository: bad pagination cursor")
)

// isConditionFailure reports whether err is a conditional-write rejection,
// either directly or as a cancellation reason inside a transaction.
func isConditionFailure(err error) bool {
	var cond *types.ConditionalCheckFailedException
	if errors.As(err, &cond) {
		return true
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

// isTransient reports whether err is worth retrying: throttling, capacity
// exhaustion, or a store-side 5xx.
func isTransient(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return true
	}
	var limit *types.RequestLimitExceeded
	if errors.As(err, &limit) {
		return true
	}
	var internal *types.InternalServerError
	if errors.As(err, &internal) {
		return true
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && (*reason.Code == "ThrottlingError" || *reason.Code == "ProvisionedThroughputExceeded") {
				return true
			}
		}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailable", "InternalFailure":
			return true
		}
	}
	return false
}
