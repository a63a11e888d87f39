package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reclaimai/reclaim/internal/domain/auth"
)

// Auth is the GoTrue-style auth endpoint set.
type Auth struct {
	c   *Client
	now func() time.Time
}

func NewAuth(c *Client) *Auth {
	return &Auth{c: c, now: time.Now}
}

var _ auth.Provider = (*Auth)(nil)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`

	// signup without auto-confirm answers with the bare user
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	var out tokenResponse
	err := a.c.sendJSON(ctx, request{
		op:     "sign in",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
	}, credentials{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return a.session(out), nil
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*auth.Session, error) {
	var out tokenResponse
	err := a.c.sendJSON(ctx, request{
		op:     "sign up",
		method: http.MethodPost,
		path:   "/auth/v1/signup",
	}, credentials{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, nil
	}
	return a.session(out), nil
}

func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	return a.c.sendJSON(auth.WithAccessToken(ctx, accessToken), request{
		op:     "sign out",
		method: http.MethodPost,
		path:   "/auth/v1/logout",
	}, nil, nil)
}

func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	var out tokenResponse
	err := a.c.sendJSON(ctx, request{
		op:     "refresh session",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
	}, map[string]string{"refresh_token": refreshToken}, &out)
	if err != nil {
		return nil, err
	}
	return a.session(out), nil
}

// Check pings the auth health endpoint.
func (a *Auth) Check(ctx context.Context) error {
	return a.c.sendJSON(ctx, request{op: "auth health", method: http.MethodGet, path: "/auth/v1/health"}, nil, nil)
}

func (a *Auth) session(out tokenResponse) *auth.Session {
	s := &auth.Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
	}
	if out.User != nil {
		s.User = auth.User{ID: out.User.ID, Email: out.User.Email}
	} else {
		s.User = auth.User{ID: out.ID, Email: out.Email}
	}

	switch {
	case out.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	case out.ExpiresIn > 0:
		s.ExpiresAt = a.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	default:
		s.ExpiresAt = tokenExpiry(out.AccessToken)
	}
	if s.User.ID == "" {
		s.User.ID = tokenSubject(out.AccessToken)
	}
	return s
}

// The access token is verified by the backend, so only its claims are read here.
func unverifiedClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if token == "" {
		return claims
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return jwt.MapClaims{}
	}
	return claims
}

func tokenExpiry(token string) time.Time {
	exp, err := unverifiedClaims(token).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func tokenSubject(token string) string {
	sub, err := unverifiedClaims(token).GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
