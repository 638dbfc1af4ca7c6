package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mentorbridge/mentorbridge"
)

// Guard authorizes the bearer token against roles and stores the resulting
// identity on the request context. An empty role set admits any valid token.
func Guard(engine *mentorbridge.Engine, roles mentorbridge.RoleSet) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, token string) (*mentorbridge.Identity, error) {
		return engine.Authorize(r.Context(), token, roles)
	})
}

// RequireAction authorizes the bearer token against the capability table
// entry for action.
func RequireAction(engine *mentorbridge.Engine, action mentorbridge.Action) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, token string) (*mentorbridge.Identity, error) {
		return engine.AuthorizeAction(r.Context(), token, action)
	})
}

type authorizeFunc func(r *http.Request, token string) (*mentorbridge.Identity, error)

func guard(engine *mentorbridge.Engine, authorize authorizeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, mentorbridge.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, mentorbridge.ErrUnauthenticated)
				return
			}

			ctx := mentorbridge.WithClientIP(r.Context(), clientIP(r))
			ctx = mentorbridge.WithUserAgent(ctx, r.UserAgent())
			r = r.WithContext(ctx)

			id, err := authorize(r, token)
			if err != nil {
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(mentorbridge.WithIdentity(ctx, id)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// Only the kind's fixed message is written; wrapped backend detail stays in
// the engine log.
func writeError(w http.ResponseWriter, err error) {
	kind := mentorbridge.KindOf(err)
	detail := string(kind)
	switch kind {
	case mentorbridge.KindUnauthenticated:
		detail = "could not validate credentials"
	case mentorbridge.KindForbidden:
		detail = "not permitted"
	case mentorbridge.KindInternal:
		detail = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorBody{Detail: detail, Code: string(kind)})
}
