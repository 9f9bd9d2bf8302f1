package auth

import (
	"net/http"
	"time"
)

const (
	// AuthCookieName carries the bearer token for browser clients.
	AuthCookieName = "threadline_access_token"
	// StateCookieName carries the client-side session state,
	// independent of the bearer token.
	StateCookieName = "threadline_session"
)

// TokenFromRequest extracts the bearer token from the Authorization
// header, falling back to the auth cookie. Returns "" when absent.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
	}
	if cookie, err := r.Cookie(AuthCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SetAuthCookie attaches the bearer token to the response.
func SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie expires the auth cookie.
func ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// StateFromRequest extracts the encoded client-side session state
// cookie value. Returns "" when absent.
func StateFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(StateCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SetStateCookie attaches the encoded client-side session state to
// the response.
func SetStateCookie(w http.ResponseWriter, encoded string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie expires the client-side session state cookie.
func ClearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
