package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 4
	defaultBackoff     = 200 * time.Millisecond
	// Upper bound on a server-requested Retry-After wait.
	maxRetryAfter  = 30 * time.Second
	errorBodyLimit = 4096
)

// Statuses OpenRouteService returns for rate limiting and service-side
// outages. 501 means the profile or option is unsupported and is final.
var transientStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// apiError is a non-2xx ORS response. Code is the ORS error code from
// {"error":{"code":2010,"message":"..."}} bodies, zero when absent.
type apiError struct {
	Status     int
	Code       int
	Message    string
	retryAfter time.Duration
}

func (e *apiError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ors status %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ors status %d: %s", e.Status, e.Message)
}

func (e *apiError) temporary() bool { return transientStatus[e.Status] }

func readAPIError(resp *http.Response) *apiError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	e := &apiError{
		Status:     resp.StatusCode,
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && len(body.Error) > 0 {
		var detail struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &detail) == nil && detail.Message != "" {
			e.Code, e.Message = detail.Code, detail.Message
			return e
		}
		var msg string
		if json.Unmarshal(body.Error, &msg) == nil && msg != "" {
			e.Message = msg
			return e
		}
	}

	e.Message = strings.TrimSpace(string(raw))
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// parseRetryAfter reads the delay-seconds form only; ORS does not send dates.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

// shouldRetry reports whether err is worth another attempt: a transient ORS
// status or a network failure while the caller's context is still live.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (o *ORSProvider) newRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/json, application/geo+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send performs the request built by makeReq, retrying up to maxAttempts
// times. Waits double from the configured backoff, or follow Retry-After when
// ORS asks for longer.
func (o *ORSProvider) send(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	delay := o.backoff
	var lastErr error

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := o.session.Do(req)
		if err == nil && resp.StatusCode < 300 {
			return resp, nil
		}
		if err == nil {
			err = readAPIError(resp)
			resp.Body.Close()
		}
		lastErr = err

		if attempt == o.maxAttempts || !shouldRetry(ctx, err) {
			break
		}

		wait := delay
		var ae *apiError
		if errors.As(err, &ae) && ae.retryAfter > wait {
			wait = ae.retryAfter
		}
		o.logger.Debug("retrying ors request",
			zap.String("url", req.URL.Path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return nil, lastErr
}
