package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// Kind classifies an endpoint failure for retry purposes.
type Kind string

const (
	// KindTransient failures (timeouts, rate limits, 5xx, resets) are
	// retry-eligible.
	KindTransient Kind = "transient"
	// KindFatal failures (auth, malformed request, permanent 4xx) are not.
	KindFatal Kind = "fatal"
)

// EndpointError wraps a dispatch failure with its retry classification.
type EndpointError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "llm: endpoint error <nil>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: endpoint error (%s, status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("llm: endpoint error (%s): %s", e.Kind, msg)
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Transient reports whether err should be retried. Context cancellation is
// never transient: the caller decided to stop.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var epErr *EndpointError
	if errors.As(err, &epErr) {
		return epErr.Kind == KindTransient
	}
	return false
}

// Classify wraps a raw provider error into an EndpointError. Already
// classified errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var epErr *EndpointError
	if errors.As(err, &epErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &EndpointError{Kind: KindTransient, Message: "request timeout", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return &EndpointError{
			Kind:       classifyStatus(oaiErr.HTTPStatusCode),
			StatusCode: oaiErr.HTTPStatusCode,
			Message:    oaiErr.Message,
			Err:        err,
		}
	}
	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) {
		return &EndpointError{
			Kind:       classifyStatus(oaiReqErr.HTTPStatusCode),
			StatusCode: oaiReqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	var sdkErr *anthropic.Error
	if errors.As(err, &sdkErr) {
		return &EndpointError{
			Kind:       classifyStatus(sdkErr.StatusCode),
			StatusCode: sdkErr.StatusCode,
			Err:        err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &EndpointError{Kind: KindTransient, Message: "network timeout", Err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return &EndpointError{Kind: KindTransient, Message: "connection error", Err: err}
	}

	// Unknown failures default to transient: a retry is cheap and the
	// attempt cap bounds the damage.
	return &EndpointError{Kind: KindTransient, Err: err}
}

func classifyStatus(status int) Kind {
	switch {
	case status == 408 || status == 429:
		return KindTransient
	case status >= 500 && status <= 599:
		return KindTransient
	case status >= 400 && status <= 499:
		return KindFatal
	default:
		return KindTransient
	}
}

// Some gateways return error prose with HTTP 200. Responses matching these
// phrasings are treated as failed attempts, not model answers.
var apiErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)###\s*Model\s*Response\s*Error\s*during\s*API\s*call`),
	regexp.MustCompile(`(?i)Error\s*during\s*API\s*call.*try\s*again`),
	regexp.MustCompile(`(?i)API\s*(call|request)\s*(failed|error|timeout)`),
	regexp.MustCompile(`(?i)Exception\s*occurred.*API`),
	regexp.MustCompile(`(?i)(failed|error|unable)\s*to\s*(generate|get|fetch)\s*response`),
	regexp.MustCompile(`(?i)The\s*model\s*did\s*not\s*provide\s*a\s*(response|answer)`),
	regexp.MustCompile(`(?i)^(Error:|Warning:|Exception:|API Error:)`),
}

// LooksLikeAPIError reports whether response text is an error message
// rather than an answer. Empty text counts as an error.
func LooksLikeAPIError(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	for _, p := range apiErrorPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// ScreenResponse converts an error-shaped response body into a transient
// EndpointError so the retry layer re-dispatches it.
func ScreenResponse(resp *Response) error {
	if resp == nil {
		return &EndpointError{Kind: KindTransient, Message: "nil response"}
	}
	if LooksLikeAPIError(resp.Text) {
		preview := strings.TrimSpace(resp.Text)
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		if preview == "" {
			preview = "empty response"
		}
		return &EndpointError{Kind: KindTransient, Message: "error pattern in response: " + preview}
	}
	return nil
}
