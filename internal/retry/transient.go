package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	"github.com/jackc/pgx/v5/pgconn"
)

type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as safe to retry. Collaborators whose failures are
// presumed temporary (OCR, summarization) wrap their errors with it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

var transientCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"ThrottledException":                     {},
	"RequestThrottled":                       {},
	"RequestThrottledException":              {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"SlowDown":                               {},
	"RequestTimeout":                         {},
	"RequestTimeoutException":                {},
	"InternalError":                          {},
	"InternalFailure":                        {},
	"ServiceUnavailable":                     {},
	"PriorRequestNotComplete":                {},
}

var permanentCodes = map[string]struct{}{
	"AccessDenied":          {},
	"AccessDeniedException": {},
	"Forbidden":             {},
	"InvalidAccessKeyId":    {},
	"SignatureDoesNotMatch": {},
	"ExpiredToken":          {},
	"NoSuchBucket":          {},
	"NoSuchKey":             {},
	"NotFound":              {},
	"InvalidArgument":       {},
	"ValidationException":   {},
	"InvalidRequest":        {},
}

// IsTransient classifies err as throttling, timeout, or a server-side failure.
// Permission and validation errors are never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var marked transientError
	if errors.As(err, &marked) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := permanentCodes[code]; ok {
			return false
		}
		if _, ok := transientCodes[code]; ok {
			return true
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout")
}
