package middleware

import (
    "bytes"
    "context"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/jo-ticketing/internal/config"
)

// cachedResponse is what one cache entry holds.  Body is base64 in JSON.
type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// recorder tees the response to the client and to a buffer.  Once the body
// passes max it stops buffering and marks itself overflowed so a partial
// body is never stored.
type recorder struct {
    http.ResponseWriter
    status     int
    buf        bytes.Buffer
    max        int
    overflowed bool
}

func (r *recorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
    if !r.overflowed {
        if r.max > 0 && r.buf.Len()+len(b) > r.max {
            r.overflowed = true
            r.buf.Reset()
        } else {
            r.buf.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

func (r *recorder) cacheable() bool {
    return r.status == http.StatusOK && !r.overflowed
}

// responseKey hashes the route (and query, if configured) under prefix so
// PurgeCache can find every entry with one SCAN pattern.
func responseKey(cfg config.CacheConfig, c echo.Context) string {
    id := c.Path() + "|" + c.Request().URL.Path
    if cfg.VaryOnQuery {
        id += "?" + c.Request().URL.RawQuery
    }
    sum := sha256.Sum256([]byte(id))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

// NewRedisCache caches anonymous GET responses of the public catalog.
// Requests carrying credentials bypass it in both directions.  Redis errors
// degrade to an uncached response.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if req.Method != http.MethodGet || req.Header.Get(echo.HeaderAuthorization) != "" {
                return next(c)
            }
            key := responseKey(cfg, c)

            if hit, ok := lookup(req.Context(), rdb, key); ok {
                c.Response().Header().Set("X-Cache", "HIT")
                return c.Blob(hit.Status, hit.ContentType, hit.Body)
            }

            rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, max: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if !rec.cacheable() {
                return nil
            }
            entry, err := json.Marshal(cachedResponse{
                Status:      rec.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        rec.buf.Bytes(),
            })
            if err == nil {
                // the client has its answer; a canceled request must not skip the write
                _ = rdb.Set(context.WithoutCancel(req.Context()), key, entry, cfg.TTL).Err()
            }
            return nil
        }
    }
}

func lookup(ctx context.Context, rdb *redis.Client, key string) (cachedResponse, bool) {
    raw, err := rdb.Get(ctx, key).Bytes()
    if err != nil {
        return cachedResponse{}, false
    }
    var cr cachedResponse
    if err := json.Unmarshal(raw, &cr); err != nil || cr.Status == 0 {
        return cachedResponse{}, false
    }
    return cr, true
}

// PurgeCache deletes every entry under prefix.  Catalog writes call it so
// the public listing reflects an admin edit immediately instead of after
// the TTL.
func PurgeCache(ctx context.Context, rdb *redis.Client, prefix string) error {
    if rdb == nil {
        return nil
    }
    ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
    defer cancel()

    var batch []string
    iter := rdb.Scan(ctx, 0, prefix+":*", 200).Iterator()
    for iter.Next(ctx) {
        batch = append(batch, iter.Val())
        if len(batch) == 200 {
            if err := rdb.Unlink(ctx, batch...).Err(); err != nil {
                return err
            }
            batch = batch[:0]
        }
    }
    if err := iter.Err(); err != nil {
        return err
    }
    if len(batch) > 0 {
        return rdb.Unlink(ctx, batch...).Err()
    }
    return nil
}
