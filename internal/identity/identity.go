package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"trade-bot-console-go/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoPrincipal  = errors.New("token carries no principal")
	ErrExpiredToken = errors.New("token expired")
)

// Result is the outcome of establishing an identity. The zero value is Anonymous.
type Result struct {
	Principal string
	Token     string
}

// Anonymous is the result of an abandoned, failed or unavailable login.
var Anonymous = Result{}

// Authenticated reports whether the result carries a principal.
func (r Result) Authenticated() bool {
	return r.Principal != ""
}

// Session obtains and holds one authenticated principal for the life of the process.
type Session struct {
	cfg    config.Auth
	logger *zap.Logger
	now    func() time.Time
	flight singleflight.Group

	mu      sync.RWMutex
	prompt  func(loginURL string)
	current Result
}

// NewSession creates a new identity session.
func NewSession(cfg config.Auth, logger *zap.Logger) *Session {
	return &Session{
		cfg:    cfg,
		logger: logger.Named("identity"),
		now:    time.Now,
		prompt: func(string) {},
	}
}

// SetPrompt installs the hook that shows the login URL to the user.
func (s *Session) SetPrompt(prompt func(loginURL string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
}

// Current returns the last resolved identity.
func (s *Session) Current() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token returns the bearer credential of the current identity, or "" when anonymous.
func (s *Session) Token() string {
	return s.Current().Token
}

// Establish resolves the session identity. A valid cached credential resolves immediately;
// otherwise an interactive redirect login is started and awaited until ctx is done or the
// login timeout elapses. Every failure mode other than an unusable callback listener
// resolves to Anonymous with a nil error. Callers arriving while a login is in
// progress wait for that login instead of starting another.
func (s *Session) Establish(ctx context.Context) (Result, error) {
	if cur := s.Current(); cur.Authenticated() {
		return cur, nil
	}

	v, err, shared := s.flight.Do("establish", func() (any, error) {
		return s.establish(ctx)
	})
	if shared {
		s.logger.Debug("Joined an in-progress login")
	}
	return v.(Result), err
}

func (s *Session) establish(ctx context.Context) (Result, error) {
	if s.cfg.Token != "" {
		principal, err := s.ParseCredential(s.cfg.Token)
		if err == nil {
			return s.publish(Result{Principal: principal, Token: s.cfg.Token}), nil
		}
		s.logger.Info("Cached credential rejected", zap.Error(err))
	}

	if s.cfg.ProviderURL == "" {
		s.logger.Info("No identity provider configured, continuing anonymously")
		return Anonymous, nil
	}

	return s.login(ctx)
}

func (s *Session) login(ctx context.Context) (Result, error) {
	listener, err := net.Listen("tcp", s.cfg.CallbackAddr)
	if err != nil {
		return Anonymous, fmt.Errorf("failed to open login callback listener: %w", err)
	}

	state := uuid.NewString()
	redirectURI := "http://" + listener.Addr().String() + "/callback"
	loginURL, err := buildLoginURL(s.cfg.ProviderURL, redirectURI, state)
	if err != nil {
		listener.Close()
		return Anonymous, fmt.Errorf("invalid identity provider url: %w", err)
	}

	results := make(chan Result, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "unknown login request", http.StatusBadRequest)
			return
		}
		token := q.Get("token")
		principal, err := s.ParseCredential(token)
		if err != nil {
			// The provider may redirect again; keep waiting.
			s.logger.Warn("Login callback carried an unusable token", zap.Error(err))
			http.Error(w, "login failed", http.StatusUnauthorized)
			return
		}
		fmt.Fprintln(w, "Login complete. You can close this window.")
		select {
		case results <- Result{Principal: principal, Token: token}:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Login callback server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	loginCtx := ctx
	if s.cfg.LoginTimeout > 0 {
		var cancel context.CancelFunc
		loginCtx, cancel = context.WithTimeout(ctx, s.cfg.LoginTimeout)
		defer cancel()
	}

	s.mu.RLock()
	prompt := s.prompt
	s.mu.RUnlock()

	s.logger.Info("Waiting for login", zap.String("redirect_uri", redirectURI))
	prompt(loginURL)

	select {
	case res := <-results:
		s.logger.Info("Logged in", zap.String("principal", res.Principal))
		return s.publish(res), nil
	case <-loginCtx.Done():
		s.logger.Info("Login not completed, continuing anonymously", zap.Error(loginCtx.Err()))
		return Anonymous, nil
	}
}

func (s *Session) publish(res Result) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = res
	return res
}

// ParseCredential validates a JWT credential and returns its subject.
// With a verify secret the HS256 signature is checked; without one only expiry is.
func (s *Session) ParseCredential(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	if s.cfg.VerifySecret != "" {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(s.cfg.VerifySecret), nil
		}, jwt.WithTimeFunc(s.now))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if !parsed.Valid {
			return "", ErrInvalidToken
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
			return "", ErrExpiredToken
		}
	}

	if claims.Subject == "" {
		return "", ErrNoPrincipal
	}
	return claims.Subject, nil
}

func buildLoginURL(provider, redirectURI, state string) (string, error) {
	u, err := url.Parse(provider)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
