package catalog

import (
	"net/http"
)

// Cookie is the persisted part of a session cookie.
type Cookie struct {
	// Name is the cookie name.
	Name string `yaml:"name"`
	// Value is the cookie value.
	Value string `yaml:"value"`
}

// Session is the storefront session kept between runs.
type Session struct {
	// Cookies are replayed on every storefront request.
	Cookies []Cookie `yaml:"cookies"`
}

// Empty reports whether the session holds no cookies.
func (s *Session) Empty() bool {
	return len(s.Cookies) == 0
}

// HTTPCookies converts the session for a cookie jar.
func (s *Session) HTTPCookies() []*http.Cookie {
	result := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		result = append(result, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}

	return result
}

func sessionFrom(cookies []*http.Cookie) Session {
	result := Session{Cookies: make([]Cookie, 0, len(cookies))}
	for _, c := range cookies {
		result.Cookies = append(result.Cookies, Cookie{Name: c.Name, Value: c.Value})
	}

	return result
}
