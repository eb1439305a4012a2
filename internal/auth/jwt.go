package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"citbif/internal/config"
	"citbif/internal/metrics"
	"citbif/internal/models"
)

// SessionStore persists the sessions backing refresh tokens. Lookups
// return (nil, nil) when nothing matches.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	FindActiveSession(ctx context.Context, tokenID string, now time.Time) (*models.Session, error)
	DeleteSession(ctx context.Context, tokenID string) (bool, error)
	DeleteAccountSessions(ctx context.Context, accountID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// AccountResolver is the credential store as seen by the auth path.
// Both lookups return (nil, nil) for a missing row.
type AccountResolver interface {
	FindAccountByID(ctx context.Context, id string) (*models.Account, error)
	FindAdminProfileByAccountID(ctx context.Context, accountID string) (*models.AdminProfile, error)
}

type Options struct {
	AccessSecret        []byte
	RefreshSecret       []byte
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	StrictSessionWrites bool
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		AccessSecret:        []byte(cfg.JWTSecret),
		RefreshSecret:       []byte(cfg.RefreshSecret()),
		AccessTTL:           cfg.AccessTokenTTL,
		RefreshTTL:          cfg.RefreshTokenTTL,
		StrictSessionWrites: cfg.StrictSessionWrites,
	}
}

type AccessClaims struct {
	Email      string            `json:"email"`
	Role       models.Role       `json:"role"`
	AdminLevel models.AdminLevel `json:"adminLevel,omitempty"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	AccountID string `json:"accountId"`
	TokenID   string `json:"tokenId"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type AccessResult struct {
	Valid   bool
	Claims  *AccessClaims
	Expired bool
	Err     error
}

type RefreshResult struct {
	Valid   bool
	Claims  *RefreshClaims
	TokenID string
	Expired bool
	Err     error
}

// ClientMeta is stored with sessions and activity records.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type Service struct {
	opts     Options
	sessions SessionStore
	accounts AccountResolver
	metrics  *metrics.Metrics
	lg       *zap.SugaredLogger

	now        func() time.Time
	newTokenID func() string
}

func NewService(opts Options, sessions SessionStore, accounts AccountResolver, m *metrics.Metrics, lg *zap.SugaredLogger) *Service {
	if len(opts.RefreshSecret) == 0 {
		opts.RefreshSecret = opts.AccessSecret
	}
	return &Service{
		opts:       opts,
		sessions:   sessions,
		accounts:   accounts,
		metrics:    m,
		lg:         lg.Named("tokens"),
		now:        time.Now,
		newTokenID: uuid.NewString,
	}
}

func (s *Service) IssueAccessToken(account *models.Account, profile *models.AdminProfile) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Email: account.Email,
		Role:  account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessTTL)),
		},
	}
	if account.IsAdmin() && profile != nil {
		claims.AdminLevel = profile.Level
	}
	signed, err := sign(claims, s.opts.AccessSecret)
	if err != nil {
		return "", err
	}
	s.metrics.TokenIssued("access")
	return signed, nil
}

// IssueRefreshToken signs a refresh token and records its session. A
// failed session write is logged and the token is returned anyway unless
// StrictSessionWrites is set. Such a token can never pass
// ValidateRefreshToken.
func (s *Service) IssueRefreshToken(ctx context.Context, accountID string, meta ClientMeta) (string, error) {
	now := s.now()
	exp := now.Add(s.opts.RefreshTTL)
	tokenID := s.newTokenID()
	claims := RefreshClaims{
		AccountID: accountID,
		TokenID:   tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := sign(claims, s.opts.RefreshSecret)
	if err != nil {
		return "", err
	}

	sess := &models.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenID:   tokenID,
		ExpiresAt: exp,
		IPAddress: optional(meta.IPAddress),
		UserAgent: optional(meta.UserAgent),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		s.metrics.SessionWriteFailed()
		s.lg.Errorw("refresh session not persisted", "account_id", accountID, "error", err)
		if s.opts.StrictSessionWrites {
			return "", fmt.Errorf("%w: %w", ErrSessionWrite, err)
		}
	}
	s.metrics.TokenIssued("refresh")
	return signed, nil
}

func (s *Service) IssueTokenPair(ctx context.Context, account *models.Account, profile *models.AdminProfile, meta ClientMeta) (*TokenPair, error) {
	access, err := s.IssueAccessToken(account, profile)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(ctx, account.ID, meta)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.opts.AccessTTL / time.Second),
	}, nil
}

// ValidateAccessToken checks signature and expiry only.
func (s *Service) ValidateAccessToken(token string) AccessResult {
	claims := &AccessClaims{}
	if err := s.parse(token, s.opts.AccessSecret, claims); err != nil {
		return AccessResult{Expired: errors.Is(err, jwt.ErrTokenExpired), Err: err}
	}
	if claims.Subject == "" {
		return AccessResult{Err: fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingSubject)}
	}
	return AccessResult{Valid: true, Claims: claims}
}

// ValidateRefreshToken additionally requires a live session row for the
// token id. Any failure to read it counts as invalid.
func (s *Service) ValidateRefreshToken(ctx context.Context, token string) RefreshResult {
	claims := &RefreshClaims{}
	if err := s.parse(token, s.opts.RefreshSecret, claims); err != nil {
		return RefreshResult{Expired: errors.Is(err, jwt.ErrTokenExpired), Err: err}
	}
	if claims.AccountID == "" || claims.TokenID == "" {
		return RefreshResult{Err: fmt.Errorf("%w: missing refresh claims", ErrInvalidToken)}
	}
	sess, err := s.sessions.FindActiveSession(ctx, claims.TokenID, s.now())
	if err != nil {
		s.lg.Warnw("refresh session lookup failed", "token_id", claims.TokenID, "error", err)
		return RefreshResult{TokenID: claims.TokenID, Err: fmt.Errorf("%w: %w", ErrSessionLookup, err)}
	}
	if sess == nil || sess.AccountID != claims.AccountID {
		return RefreshResult{TokenID: claims.TokenID, Err: ErrSessionNotFound}
	}
	return RefreshResult{Valid: true, Claims: claims, TokenID: claims.TokenID}
}

func (s *Service) parse(token string, secret []byte, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return nil
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
