package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/securebank/backoffice/internal/logging"
	"github.com/securebank/backoffice/internal/notify"
	"github.com/securebank/backoffice/internal/otp"
	"github.com/securebank/backoffice/internal/store"
	"github.com/securebank/backoffice/types"
	"golang.org/x/crypto/bcrypt"
)

const defaultDeliveryTimeout = 10 * time.Second

// UserRepository defines the operator lookups the login flow needs.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// AuthOptions tunes AuthService. Zero values select defaults.
type AuthOptions struct {
	DeliveryTimeout time.Duration
	Now             func() time.Time
}

// AuthService drives the two-step login: password check and code issuance,
// then code verification and session creation.
type AuthService struct {
	users           UserRepository
	registry        otp.Registry
	deliverer       notify.Deliverer
	sessions        *SessionStore
	log             logging.Logger
	deliveryTimeout time.Duration
	now             func() time.Time
}

func NewAuthService(
	users UserRepository,
	registry otp.Registry,
	deliverer notify.Deliverer,
	sessions *SessionStore,
	log logging.Logger,
	opts AuthOptions,
) *AuthService {
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = defaultDeliveryTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logging.Nop()
	}
	return &AuthService{
		users:           users,
		registry:        registry,
		deliverer:       deliverer,
		sessions:        sessions,
		log:             log,
		deliveryTimeout: opts.DeliveryTimeout,
		now:             opts.Now,
	}
}

// LoginResult is returned once a code has been sent.
type LoginResult struct {
	MaskedAddress string
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// burnPasswordCheck spends the same bcrypt work as a real comparison so an
// unknown username takes as long as a wrong password.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Login checks the password and, on success, issues and delivers a code.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, newError(KindInvalidInput, nil)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnPasswordCheck(password)
			s.log.Warn(ctx, "login rejected: unknown user", "username", username)
			return LoginResult{}, newError(KindInvalidCredentials, nil)
		}
		s.log.Error(ctx, "login: user lookup failed", "username", username, "error", err)
		return LoginResult{}, newError(KindStoreUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Warn(ctx, "login rejected: wrong password", "username", username)
		return LoginResult{}, newError(KindInvalidCredentials, nil)
	}

	if !user.Active {
		s.log.Warn(ctx, "login rejected: account disabled", "username", username)
		return LoginResult{}, newError(KindAccountDisabled, nil)
	}

	code, err := s.registry.Issue(ctx, otp.Pending{
		Username: user.Username,
		Address:  user.Email,
		Role:     user.Role,
		UserID:   user.ID,
	})
	if err != nil {
		s.log.Error(ctx, "login: issuing code failed", "username", username, "error", err)
		return LoginResult{}, newError(KindStoreUnavailable, err)
	}

	masked := notify.MaskAddress(user.Email)

	deliverCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()
	if err := s.deliverer.Deliver(deliverCtx, user.Email, code, user.Username); err != nil {
		s.log.Error(ctx, "login: code delivery failed", "username", username, "address", masked, "error", err)
		return LoginResult{}, newError(KindDeliveryFailed, err)
	}

	s.log.Info(ctx, "login: code sent", "username", username, "address", masked)
	return LoginResult{MaskedAddress: masked}, nil
}

// VerifyChallenge checks a submitted code and opens a session on success.
func (s *AuthService) VerifyChallenge(ctx context.Context, username, code string) (types.Session, error) {
	username = strings.TrimSpace(username)
	code = strings.TrimSpace(code)
	if username == "" || code == "" {
		return types.Session{}, newError(KindInvalidInput, nil)
	}

	result, err := s.registry.Verify(ctx, username, code)
	if err != nil {
		s.log.Error(ctx, "verify: registry failed", "username", username, "error", err)
		return types.Session{}, newError(KindStoreUnavailable, err)
	}

	switch result.Outcome {
	case otp.NotFound:
		s.log.Warn(ctx, "verify rejected: no pending code", "username", username)
		return types.Session{}, newError(KindChallengeNotFound, nil)
	case otp.Expired:
		s.log.Warn(ctx, "verify rejected: code expired", "username", username)
		return types.Session{}, newError(KindChallengeExpired, nil)
	case otp.Mismatch:
		s.log.Warn(ctx, "verify rejected: wrong code", "username", username)
		return types.Session{}, newError(KindChallengeMismatch, nil)
	}

	challenge := result.Challenge
	if err := s.users.UpdateLastLogin(ctx, challenge.UserID, s.now()); err != nil {
		s.log.Error(ctx, "verify: updating last login failed", "username", username, "error", err)
	}

	session := s.sessions.Create(username, challenge.Role, challenge.UserID)
	s.log.Info(ctx, "login completed", "username", username, "role", session.Role)
	return session, nil
}

// Session resolves a live session by id.
func (s *AuthService) Session(_ context.Context, id string) (*types.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, newError(KindUnauthenticated, nil)
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, newError(KindUnauthenticated, nil)
	}
	return &session, nil
}

// Logout ends a session. It succeeds whether or not the session exists.
func (s *AuthService) Logout(ctx context.Context, session *types.Session) {
	username := "unknown"
	if session != nil {
		s.sessions.Delete(session.ID)
		username = session.Username
	}
	s.log.Info(ctx, "logout", "username", username)
}
