package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"examsearch/internal/auth"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"
)

const bearerScheme = "bearerAuth"

type principalKey struct{}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// authMiddleware resolves the caller of every operation that declares the
// bearer scheme and stores the principal on the request context.
func authMiddleware(api huma.API, verifier *auth.Verifier) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		required := false
		for _, opScheme := range ctx.Operation().Security {
			if _, ok := opScheme[bearerScheme]; ok {
				required = true
				break
			}
		}
		if !required {
			next(ctx)
			return
		}

		p, err := verifier.Authenticate(ctx.Header("Authorization"))
		if err != nil {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "A valid bearer token is required.", err)
			return
		}
		next(huma.WithValue(ctx, principalKey{}, p))
	}
}

func principalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}
