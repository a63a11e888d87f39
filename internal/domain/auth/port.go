package auth

import "context"

// Provider is the hosted auth service.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp returns a nil session when the account must confirm its email first.
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// Persistence keeps a workspace's tokens between requests and restarts.
type Persistence interface {
	Load(ctx context.Context, sid string) (*Session, error)
	Save(ctx context.Context, sid string, s *Session) error
	Delete(ctx context.Context, sid string) error
}

// Bus delivers session-change notifications per workspace.
type Bus interface {
	Publish(ctx context.Context, sid string, ev Event) error
	// Subscribe registers fn for sid and returns the matching unsubscribe.
	Subscribe(ctx context.Context, sid string, fn func(Event)) (func(), error)
}
