package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOversize         = errors.New("payload exceeds size cap")
	ErrStatus           = errors.New("non-2xx status")
	ErrUnsupportedImage = errors.New("unsupported image payload")
)

type fetchError struct {
	stage string
	err   error
}

func (e *fetchError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// reason condenses err into a short label for logs.
func reason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrOversize):
		return "oversize"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrUnsupportedImage):
		return "unsupported_image"
	}
	var fe *fetchError
	if errors.As(err, &fe) {
		return fe.stage
	}
	return "network"
}

// download GETs url and returns at most maxBytes of body along with the
// declared Content-Type.
func download(ctx context.Context, client *http.Client, url string, maxBytes int64, logger *slog.Logger) ([]byte, string, error) {
	httpID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &fetchError{stage: "request", err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Debug("fetch.http.send_error", "http_id", httpID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, "", &fetchError{stage: "network", err: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Debug("fetch.http.response_body_close_error", "http_id", httpID, "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		return nil, "", fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return nil, "", fmt.Errorf("%w: declared %d > %d bytes", ErrOversize, resp.ContentLength, maxBytes)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", &fetchError{stage: "read", err: err}
	}
	if int64(len(raw)) > maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrOversize, maxBytes)
	}

	logger.Debug("fetch.http.response",
		"http_id", httpID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, resp.Header.Get("Content-Type"), nil
}
