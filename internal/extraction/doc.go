// Package extraction provides the LLM extraction client used by the
// pipeline's extraction steps and the generative decision fallback.
//
// The client enforces rate limiting, bounded retries with exponential
// backoff on transient failures, and a soft per-call timeout. Responses
// are validated against the requested concept schema; a response that
// fails validation fails that concept type only.
package extraction
