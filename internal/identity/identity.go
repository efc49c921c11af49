// Package identity attributes requests to a named respondent.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

const (
	// RespondentHeaderName carries the display name of whoever is answering.
	RespondentHeaderName = "X-Respondent"
	// RespondentQueryParam is used where headers cannot be set, such as
	// browser WebSocket upgrades.
	RespondentQueryParam = "respondent"
	maxRespondentLength  = 64
)

type contextKey int

const respondentKey contextKey = iota

var unsafeRespondentChars = regexp.MustCompile(`[^\p{L}\p{N} .,'@_()-]`)

// RespondentFromContext returns the respondent name, or "" when anonymous.
func RespondentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(respondentKey).(string); ok {
		return v
	}
	return ""
}

// WithRespondent returns a context carrying the respondent name.
func WithRespondent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, respondentKey, name)
}

// SanitizeRespondent trims, strips unexpected characters and bounds length.
func SanitizeRespondent(name string) string {
	name = unsafeRespondentChars.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	if r := []rune(name); len(r) > maxRespondentLength {
		name = strings.TrimSpace(string(r[:maxRespondentLength]))
	}
	return name
}

func respondentFromRequest(r *http.Request) string {
	name := r.Header.Get(RespondentHeaderName)
	if name == "" {
		name = r.URL.Query().Get(RespondentQueryParam)
	}
	return SanitizeRespondent(name)
}

// Middleware injects the respondent named by the request, if any.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := respondentFromRequest(r); name != "" {
			r = r.WithContext(WithRespondent(r.Context(), name))
		}
		next.ServeHTTP(w, r)
	})
}
