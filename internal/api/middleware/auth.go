package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"kalshibot/pkg/crypto"
)

// CronAuth - middleware для защиты cron endpoints
//
// Назначение:
// Cron endpoints запускают торговые джобы и не должны быть доступны
// извне планировщика. Планировщик передает общий секрет в заголовке
// Authorization: Bearer <CRON_SECRET>.
//
// Безопасность:
// - Constant-time сравнение токена для предотвращения timing attacks
// - При пустом секрете в конфигурации доступ запрещён полностью:
//   забытая переменная окружения не должна открывать торговые джобы
func CronAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				unauthorized(w, "cron endpoints disabled")
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				unauthorized(w, "invalid cron token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuth - middleware для защиты admin endpoints
//
// HTTP Basic Authentication: логин сравнивается за константное время,
// пароль проверяется против bcrypt-хэша из конфигурации (bcrypt
// сравнивает за константное время сам).
func AdminAuth(user, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user == "" || passwordHash == "" {
				unauthorized(w, "admin endpoints disabled")
				return
			}

			reqUser, reqPass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="Admin"`)
				unauthorized(w, "missing credentials")
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(reqUser), []byte(user)) == 1
			passMatch := crypto.CheckPasswordMatch(reqPass, passwordHash)

			if !userMatch || !passMatch {
				w.Header().Set("WWW-Authenticate", `Basic realm="Admin"`)
				unauthorized(w, "invalid credentials")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
