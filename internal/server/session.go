package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shouni/gemini-style-fusion/pkg/controller"
)

// SessionCookieName はセッション ID を保持するクッキー名です。
const SessionCookieName = "sf_session"

// withSession はクッキーのセッションを解決し、無ければ作ってクッキーを発行します。
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var current string
		if c, err := r.Cookie(SessionCookieName); err == nil {
			current = c.Value
		}

		id, ctrl, err := s.sessions.GetOrCreate(current)
		if err != nil {
			slog.ErrorContext(r.Context(), "セッションを作成できませんでした", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if id != current {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), controllerKey, ctrl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func controllerFrom(ctx context.Context) *controller.Controller {
	ctrl, _ := ctx.Value(controllerKey).(*controller.Controller)
	return ctrl
}
