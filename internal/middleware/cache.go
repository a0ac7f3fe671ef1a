package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/user-account-service/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }
func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size < cw.limit {
        remain := cw.limit - cw.size
        if cw.limit <= 0 {
            cw.buf.Write(b)
        } else if remain > 0 {
            if int64(len(b)) <= remain {
                cw.buf.Write(b)
            } else {
                cw.buf.Write(b[:remain])
            }
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// ResponseCache caches successful profile reads in Redis.  Entries are
// namespaced by a generation counter; any successful write through the
// cache middleware (or an explicit Invalidate) bumps the generation so
// stale profiles are never served after an update.
type ResponseCache struct {
    cfg     config.CacheConfig
    rdb     *redis.Client
    methods map[string]bool
    log     *zap.Logger
}

// NewResponseCache returns a cache; a nil rdb or disabled config yields a
// pass-through cache.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *ResponseCache {
    if log == nil {
        log = zap.NewNop()
    }
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    if cfg.Prefix == "" {
        cfg.Prefix = "cache"
    }
    return &ResponseCache{cfg: cfg, rdb: rdb, methods: cfg.MethodSet(), log: log}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) generationKey() string { return rc.cfg.Prefix + ":gen" }

// Invalidate drops every cached entry by advancing the generation.
func (rc *ResponseCache) Invalidate(ctx context.Context) error {
    if !rc.enabled() {
        return nil
    }
    return rc.rdb.Incr(ctx, rc.generationKey()).Err()
}

func (rc *ResponseCache) generation(ctx context.Context) (string, error) {
    v, err := rc.rdb.Get(ctx, rc.generationKey()).Result()
    if errors.Is(err, redis.Nil) {
        return "0", nil
    }
    return v, err
}

// Build a stable cache key honoring prefix/strategy.
func (rc *ResponseCache) keyFor(c echo.Context, gen string) string {
    r := c.Request()
    route := c.Path()
    query := r.URL.RawQuery
    path := r.URL.Path

    var parts []string
    switch strings.ToLower(rc.cfg.KeyStrategy) {
    case "route":
        parts = append(parts, "route", route, "path", path)
    case "route_query":
        parts = append(parts, "route", route, "path", path, "q", query)
    case "method_route_query":
        parts = append(parts, "method", r.Method, "route", route, "path", path, "q", query)
    default: // "user_route_query"
        parts = append(parts, "user", userID(c), "method", r.Method, "route", route, "path", path, "q", query)
    }

    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%s:%x", rc.cfg.Prefix, gen, sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, hdr, bs[8+hlen:], true
}

// Middleware serves cached responses for the configured methods and
// invalidates the cache after any other request that succeeds.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    maxBody := int64(rc.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            if !rc.methods[strings.ToUpper(c.Request().Method)] {
                if err := next(c); err != nil {
                    return err
                }
                if s := c.Response().Status; s >= 200 && s < 300 {
                    if err := rc.Invalidate(ctx); err != nil {
                        rc.log.Warn("cache invalidate failed", zap.Error(err))
                    }
                }
                return nil
            }

            gen, err := rc.generation(ctx)
            if err != nil {
                rc.log.Warn("cache generation read failed", zap.Error(err))
                return next(c)
            }
            key := rc.keyFor(c, gen)

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            // Miss: capture
            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
            if err != nil {
                return nil
            }
            if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
                rc.log.Warn("cache store failed", zap.Error(err))
            }
            return nil
        }
    }
}

// InvalidateOnSuccess bumps the cache generation after a successful request.
// It is used on write routes that live outside the cached group.
func (rc *ResponseCache) InvalidateOnSuccess() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if err := next(c); err != nil {
                return err
            }
            if s := c.Response().Status; s >= 200 && s < 300 {
                if err := rc.Invalidate(c.Request().Context()); err != nil {
                    rc.log.Warn("cache invalidate failed", zap.Error(err))
                }
            }
            return nil
        }
    }
}
