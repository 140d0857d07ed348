package web

import (
	"net/http"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// requestMeta stores the client address and user agent for merge history.
// RemoteAddr has already been resolved by TrustedRealIP.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithRequestMeta(r.Context(), core.RequestMeta{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
