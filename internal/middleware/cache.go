package middleware

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// cachedResponse is the stored form: two bytes of status followed by the
// response body.  Only JSON responses pass through this middleware, so no
// header reconstruction is needed.
func encodeCached(status int, body []byte) []byte {
	out := make([]byte, 2+len(body))
	out[0] = byte(status >> 8)
	out[1] = byte(status)
	copy(out[2:], body)
	return out
}

func decodeCached(bs []byte) (int, []byte, bool) {
	if len(bs) < 2 {
		return 0, nil, false
	}
	return int(bs[0])<<8 | int(bs[1]), bs[2:], true
}

// bodyCapture duplicates the response body while it streams to the client.
type bodyCapture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bodyCapture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// ReadCache returns a middleware that serves GET responses from Redis for
// a short TTL.  It exists to shed lock-status polling: every workstation
// UI polls GET /checks/:id/lock while a check is busy, and a one-second
// cache absorbs that load without making the status meaningfully stale.
// With a nil client the middleware is a no-op and every read hits the
// store.
func ReadCache(rdb *redis.Client, ttl time.Duration) echo.MiddlewareFunc {
	if ttl <= 0 {
		ttl = time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rdb == nil {
			return next
		}
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			sum := sha1.Sum([]byte(c.Request().URL.RequestURI()))
			key := fmt.Sprintf("capscache:%x", sum)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, body, ok := decodeCached(bs); ok {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.JSONBlob(status, body)
				}
			}

			rec := &bodyCapture{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				return err
			}
			// Cache only successful and not-found reads; conflict bodies
			// change too quickly to be worth storing.
			if rec.status == http.StatusOK || rec.status == http.StatusNotFound {
				_ = rdb.Set(ctx, key, encodeCached(rec.status, rec.buf.Bytes()), ttl).Err()
			}
			return nil
		}
	}
}
