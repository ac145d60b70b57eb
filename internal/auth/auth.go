// Package auth resolves the user a request acts for. Sessions only ever
// see the resulting user id.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

const (
	// HeaderUserID carries the caller's user id.
	HeaderUserID = "X-User-ID"
	// HeaderAPIKey carries the shared API key when one is configured.
	HeaderAPIKey = "X-API-Key"

	contextKey = "user_id"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidAPIKey   = errors.New("invalid api key")
)

// Provider yields the current user id.
type Provider interface {
	// UserID resolves the user of an HTTP request.
	UserID(r *http.Request) (string, error)
	// Hello resolves the user of a websocket hello message.
	Hello(userID, apiKey string) (string, error)
}

// HeaderProvider trusts the X-User-ID header, optionally gated by a shared
// API key.
type HeaderProvider struct {
	apiKey string
}

// NewHeaderProvider returns a provider that requires apiKey when it is not
// empty.
func NewHeaderProvider(apiKey string) *HeaderProvider {
	return &HeaderProvider{apiKey: apiKey}
}

func (p *HeaderProvider) UserID(r *http.Request) (string, error) {
	key := r.Header.Get(HeaderAPIKey)
	if key == "" {
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			key = bearer
		}
	}
	return p.Hello(r.Header.Get(HeaderUserID), key)
}

func (p *HeaderProvider) Hello(userID, apiKey string) (string, error) {
	if p.apiKey != "" && subtle.ConstantTimeCompare([]byte(apiKey), []byte(p.apiKey)) != 1 {
		return "", ErrInvalidAPIKey
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// Static is a provider with a single signed-in user, for embedded use.
// Subscribers are told when the user changes.
type Static struct {
	mu     sync.Mutex
	userID string
	subs   map[chan string]struct{}
}

// NewStatic returns a provider signed in as userID. An empty id means
// signed out.
func NewStatic(userID string) *Static {
	return &Static{userID: userID, subs: make(map[chan string]struct{})}
}

func (s *Static) UserID(*http.Request) (string, error) {
	return s.Hello("", "")
}

func (s *Static) Hello(string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "", ErrUnauthenticated
	}
	return s.userID, nil
}

// Set changes the signed-in user and notifies subscribers. Subscribers that
// are not keeping up miss intermediate values but always see the latest.
func (s *Static) Set(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == userID {
		return
	}
	s.userID = userID
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- userID
	}
}

// Subscribe returns a channel of user changes and a function that ends the
// subscription.
func (s *Static) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Middleware resolves the user of each request and stores it on the echo
// context. Unauthenticated requests get 401.
func Middleware(p Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := p.UserID(c.Request())
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
			}
			c.Set(contextKey, userID)
			return next(c)
		}
	}
}

// FromContext returns the user stored by Middleware.
func FromContext(c echo.Context) string {
	userID, _ := c.Get(contextKey).(string)
	return userID
}

// WithUser stores userID on c the way Middleware does.
func WithUser(c echo.Context, userID string) {
	c.Set(contextKey, userID)
}
