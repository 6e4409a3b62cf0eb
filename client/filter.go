package client

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Filter transforms a completed transfer's outcome into the caller's
// type. It runs exactly once, when the future resolves, and receives
// whichever of (result, error) the transfer produced. A filter may pass
// an incoming error through, replace it, or swallow it and synthesize a
// value.
type Filter[T any] func(*Result, error) (T, error)

// DecodeJSON returns a filter that unmarshals the response body into T.
// Transfer errors pass through untouched.
func DecodeJSON[T any]() Filter[T] {
	return func(res *Result, err error) (T, error) {
		var v T
		if err != nil {
			return v, err
		}

		if err := json.Unmarshal(res.Body, &v); err != nil {
			return v, fmt.Errorf("decoding body: %w", err)
		}

		return v, nil
	}
}

// ExpectStatus returns a filter that verifies the response status code,
// converting mismatches into an [UnexpectedStatusError]. The captured
// body is truncated to maxErrBodySize. A 401 or 403 additionally joins
// [ErrAuthFailure] so callers can branch on auth problems without
// enumerating codes.
func ExpectStatus(want int) Filter[*Result] {
	return func(res *Result, err error) (*Result, error) {
		if err != nil {
			return nil, err
		}

		if res.Status == want {
			return res, nil
		}

		body := res.Body
		if len(body) > maxErrBodySize {
			body = body[:maxErrBodySize]
		}

		cause := ErrUnexpectedStatusCode
		if res.Status == http.StatusUnauthorized || res.Status == http.StatusForbidden {
			cause = fmt.Errorf("%w: %w", ErrAuthFailure, ErrUnexpectedStatusCode)
		}

		return nil, &UnexpectedStatusError{
			StatusCode: res.Status,
			Body:       string(body),
			Err:        cause,
		}
	}
}
