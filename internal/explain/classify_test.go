package explain

import (
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want failureClass
	}{
		{
			name: "api rate limit",
			err:  &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"},
			want: failureTransient,
		},
		{
			name: "api overloaded",
			err:  &openai.APIError{HTTPStatusCode: 503, Message: "engine overloaded"},
			want: failureTransient,
		},
		{
			name: "api model missing",
			err:  &openai.APIError{HTTPStatusCode: 404, Message: "model does not exist"},
			want: failureModelMissing,
		},
		{
			name: "api bad key",
			err:  &openai.APIError{HTTPStatusCode: 401, Message: "invalid key"},
			want: failureFatal,
		},
		{
			name: "request error unavailable",
			err:  &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("bad gateway")},
			want: failureTransient,
		},
		{
			name: "wrapped api error",
			err:  fmt.Errorf("generate: %w", &openai.APIError{HTTPStatusCode: 429}),
			want: failureTransient,
		},
		{
			name: "grpc resource exhausted",
			err:  errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED: quota exceeded"),
			want: failureTransient,
		},
		{
			name: "grpc unavailable",
			err:  errors.New("rpc error: code = Unavailable desc = try again later"),
			want: failureTransient,
		},
		{
			name: "model overloaded text",
			err:  errors.New("the model is overloaded, please retry"),
			want: failureTransient,
		},
		{
			name: "grpc not found",
			err:  errors.New("rpc error: code = NotFound desc = publisher model NOT_FOUND"),
			want: failureModelMissing,
		},
		{
			name: "model not found text",
			err:  errors.New(`model "gemini-9" not found`),
			want: failureModelMissing,
		},
		{
			name: "plain network error",
			err:  errors.New("dial tcp: connection refused"),
			want: failureFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFailure(tt.err); got != tt.want {
				t.Errorf("classifyFailure(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
