package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	rd "github.com/redis/go-redis/v9"

	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
)

// luaRateLimit — Lua-скрипт скользящего окна (атомарно в Redis).
// KEYS[1]=ключ лимита, ARGV[1]=текущее время, ARGV[2]=начало окна,
// ARGV[3]=окно в секундах, ARGV[4]=member, ARGV[5]=лимит.
// Возвращает число запросов в окне или -1, если лимит исчерпан.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// CheckoutRateLimit ограничивает частоту оформлений заказов на пользователя.
// Ключ — userID из JWT-контекста; если его нет, лимитируем по IP.
// При недоступности Redis запрос пропускается (деградация вместо отказа).
func CheckoutRateLimit(log *slog.Logger, rdb *rd.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var key string
			if userID, ok := jwtmiddleware.FromContext(r.Context()); ok {
				key = fmt.Sprintf("storefront:rate_limit:checkout:user:%d", userID)
			} else {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				key = fmt.Sprintf("storefront:rate_limit:checkout:ip:%s", host)
			}

			now := time.Now().Unix()
			windowSec := int64(window.Seconds())
			windowStart := now - windowSec
			member := fmt.Sprintf("%d-%d", now, time.Now().UnixNano())

			res, err := rdb.Eval(r.Context(), luaRateLimit, []string{key},
				now, windowStart, windowSec, member, limit).Int()
			if err != nil {
				log.Warn("rate limiter unavailable, passing request through", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if res < 0 {
				http.Error(w, "too many checkout attempts, try again later", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
