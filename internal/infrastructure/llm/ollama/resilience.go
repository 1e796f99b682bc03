package ollama

import (
	"errors"

	"github.com/megachat/sales-assistant/internal/infrastructure/resilience"
)

// HTTPStatusError is kept as an alias so callers can match on it without
// importing the resilience package.
type HTTPStatusError = resilience.HTTPStatusError

func classifyOllamaError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	// A missing model never heals by retrying.
	if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyHTTPError(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.WrapTemporary(operation, err, classifyOllamaError)
}
