package explain

import (
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// failureClass sorts a model error into the bucket that decides the next
// state transition: retry with backoff, switch to the fallback model, or
// give up.
type failureClass int

const (
	// failureTransient covers rate limits and temporary overload; the
	// request is retried against the same model after a backoff.
	failureTransient failureClass = iota
	// failureModelMissing means the requested model does not exist or is
	// not served; retrying cannot help, the fallback is used directly.
	failureModelMissing
	// failureFatal covers everything else: bad credentials, malformed
	// requests, network errors with no retry signal.
	failureFatal
)

func (c failureClass) String() string {
	switch c {
	case failureTransient:
		return "transient"
	case failureModelMissing:
		return "model_missing"
	default:
		return "fatal"
	}
}

// classifyFailure inspects structured OpenAI errors first and falls back
// to matching the error text, which is how Vertex AI gRPC failures and
// wrapped transport errors surface.
func classifyFailure(err error) failureClass {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if class, ok := classifyStatus(apiErr.HTTPStatusCode); ok {
			return class
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if class, ok := classifyStatus(reqErr.HTTPStatusCode); ok {
			return class
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "RESOURCE_EXHAUSTED"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "Unavailable"),
		strings.Contains(msg, "overloaded"):
		return failureTransient
	case strings.Contains(msg, "404"),
		strings.Contains(msg, "NOT_FOUND"),
		strings.Contains(msg, "not found"):
		return failureModelMissing
	default:
		return failureFatal
	}
}

func classifyStatus(status int) (failureClass, bool) {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return failureTransient, true
	case http.StatusNotFound:
		return failureModelMissing, true
	default:
		return failureFatal, false
	}
}
