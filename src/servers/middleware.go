package servers

import (
	"net/http"

	applog "github.com/bililive-go/livesched/src/log"
)

func log(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		applog.GetLogger().WithFields(map[string]any{
			"Method":     r.Method,
			"Path":       r.RequestURI,
			"RemoteAddr": r.RemoteAddr,
		}).Debug("Http Request")
		handler.ServeHTTP(w, r)
	})
}

// confirmed 带 confirm=true 的请求视为已经过用户确认
func confirmed(r *http.Request) bool {
	switch r.URL.Query().Get("confirm") {
	case "true", "1", "yes":
		return true
	}
	return false
}
