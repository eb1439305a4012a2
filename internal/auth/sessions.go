package auth

import (
	"context"
	"fmt"
	"time"

	"citbif/internal/models"
)

// RevokeRefreshToken deletes the session for tokenID. It reports false
// when nothing matched, so a repeat call is harmless.
func (s *Service) RevokeRefreshToken(ctx context.Context, tokenID string) (bool, error) {
	return s.sessions.DeleteSession(ctx, tokenID)
}

func (s *Service) RevokeAllSessions(ctx context.Context, accountID string) (bool, error) {
	n, err := s.sessions.DeleteAccountSessions(ctx, accountID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.lg.Infow("sessions revoked", "account_id", accountID, "count", n)
	}
	return n > 0, nil
}

func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.SessionsSwept(n)
	return n, nil
}

// Refresh rotates a refresh token: the presented session is revoked and a
// new pair is issued for the account it belonged to.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*TokenPair, *models.Account, error) {
	res := s.ValidateRefreshToken(ctx, refreshToken)
	if !res.Valid {
		return nil, nil, res.Err
	}
	// Resolve the account before rotating so a failed lookup leaves the
	// session usable for a retry.
	account, err := s.accounts.FindAccountByID(ctx, res.Claims.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrAccountLookup, err)
	}
	revoked, err := s.RevokeRefreshToken(ctx, res.TokenID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSessionLookup, err)
	}
	if account == nil {
		return nil, nil, ErrAccountNotFound
	}
	if !revoked {
		// another request rotated or revoked it first
		return nil, nil, ErrSessionNotFound
	}

	var profile *models.AdminProfile
	if account.IsAdmin() {
		profile, err = s.accounts.FindAdminProfileByAccountID(ctx, account.ID)
		if err != nil {
			s.lg.Warnw("admin profile lookup failed during refresh", "account_id", account.ID, "error", err)
		}
	}
	pair, err := s.IssueTokenPair(ctx, account, profile, meta)
	if err != nil {
		return nil, nil, err
	}
	return pair, account, nil
}

// RunSweeper calls CleanupExpiredSessions every interval until ctx ends.
func (s *Service) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.CleanupExpiredSessions(ctx)
			if err != nil {
				s.lg.Warnw("session sweep failed", "error", err)
				continue
			}
			s.lg.Infow("session sweep", "removed", n)
		}
	}
}
