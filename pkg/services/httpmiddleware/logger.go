package httpmiddleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Logger creates a logging middleware for http.RoundTripper.
// maxBodySize controls response body logging for non-2xx responses:
//   - 0: no body logging
//   - -1: log entire body
//   - >0: log first N bytes of body
//
// Request bodies are never logged here; they may carry credentials.
func Logger(logger *slog.Logger, maxBodySize int) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			duration := time.Since(start)

			if err != nil {
				logger.Error("📡 HTTP request failed",
					slog.String("method", req.Method),
					slog.String("url", req.URL.String()),
					slog.Duration("duration", duration),
					slog.Any("error", err))

				return resp, err
			}

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
				slog.Int("status", resp.StatusCode),
				slog.Duration("duration", duration),
			}

			level := slog.LevelDebug
			if resp.StatusCode >= 400 {
				level = slog.LevelWarn

				if maxBodySize != 0 && resp.Body != nil {
					if body, readErr := readBody(resp.Body, maxBodySize); readErr == nil {
						// Возвращаем тело вызывающему
						resp.Body = io.NopCloser(bytes.NewReader(body))
						attrs = append(attrs, slog.String("body", string(body)))
					}
				}
			}
			if resp.StatusCode >= 500 {
				level = slog.LevelError
			}

			logger.LogAttrs(req.Context(), level, "📡 HTTP response", attrs...)

			return resp, nil
		})
	}
}

// readBody reads the body up to maxBodySize bytes (-1 reads everything).
func readBody(body io.ReadCloser, maxBodySize int) ([]byte, error) {
	defer body.Close()

	if maxBodySize == -1 {
		return io.ReadAll(body)
	}

	buf := make([]byte, maxBodySize)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}

	return buf[:n], nil
}
