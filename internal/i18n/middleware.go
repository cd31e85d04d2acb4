package i18n

import "net/http"

// Middleware picks the request language from ?lang= or Accept-Language and
// injects the matching localizer into the request context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
			ctx = withLang(ctx, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
