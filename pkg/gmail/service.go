package gmail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"lead-responder/pkg/retry"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// ErrHistoryExpired is returned when the start cursor is older than the
// mailbox history Gmail keeps.
var ErrHistoryExpired = errors.New("gmail history cursor expired")

const defaultPageSize = 500

// Service is the mailbox gateway for a single Gmail account.
type Service struct {
	srv          *gmail.Service
	user         string
	historyLabel string
	policy       retry.Policy
}

type notifyTokenSource struct {
	mu      sync.Mutex
	src     oauth2.TokenSource
	current *oauth2.Token
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.src.Token()
	if err != nil {
		log.Printf("[Gmail] Token refresh failed: %v", err)
		return nil, err
	}
	if s.current == nil || s.current.AccessToken != t.AccessToken {
		s.current = t
		log.Printf("[Gmail] Access token refreshed, expires at %s", t.Expiry.Format(time.RFC3339))
	}
	return t, nil
}

// Options tune a Service. Zero values fall back to sensible defaults.
type Options struct {
	User         string
	HistoryLabel string
	RedirectURL  string
	Policy       retry.Policy
}

// NewService builds a gateway authenticated with a long-lived refresh token.
func NewService(ctx context.Context, clientID, clientSecret, refreshToken string, opts Options) (*Service, error) {
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		// Force a refresh on first use
		Expiry: time.Now(),
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  opts.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}

	wrappedSource := &notifyTokenSource{src: config.TokenSource(ctx, token)}
	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return NewServiceWithClient(srv, opts), nil
}

// NewServiceWithClient wraps an already configured Gmail client.
func NewServiceWithClient(srv *gmail.Service, opts Options) *Service {
	if opts.User == "" {
		opts.User = "me"
	}
	if opts.Policy.MaxRetries == 0 && opts.Policy.InitialDelay == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	return &Service{
		srv:          srv,
		user:         opts.User,
		historyLabel: opts.HistoryLabel,
		policy:       opts.Policy,
	}
}

// Profile returns the mailbox address and its current history id.
func (s *Service) Profile(ctx context.Context) (string, uint64, error) {
	profile, err := retry.Do(ctx, s.policy, func() (*gmail.Profile, error) {
		return s.srv.Users.GetProfile(s.user).Context(ctx).Do()
	})
	if err != nil {
		return "", 0, fmt.Errorf("unable to get mailbox profile: %w", err)
	}
	return profile.EmailAddress, profile.HistoryId, nil
}
