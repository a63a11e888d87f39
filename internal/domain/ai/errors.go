package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrMalformedOutput means the provider answered with something that is not
// the expected JSON object.
var ErrMalformedOutput = errors.New("ai output malformed")
