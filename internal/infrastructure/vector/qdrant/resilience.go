package qdrant

import (
	"errors"
	"net/http"

	"github.com/megachat/sales-assistant/internal/infrastructure/resilience"
)

func classifyQdrantError(err error) resilience.ErrorClassification {
	// An existing collection is reported as 409 and handled by the caller.
	if statusErr, ok := asStatusError(err); ok && statusErr.StatusCode == http.StatusConflict {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyHTTPError(err)
}

func asStatusError(err error) (*resilience.HTTPStatusError, bool) {
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
