package pinauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"time"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/shared/clock"
	"shiftcheck/internal/staff"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"
)

const (
	maxFailedAttempts = 3
	lockoutDuration   = 5 * time.Minute

	pbkdf2Iterations = 10000
	pbkdf2KeyLen     = 32
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// Outcome codes mirrored into HTTP responses. The PIN gate is a deterrent
// for casual misuse on a shared device, not a hardened auth system.
const (
	OutcomeInvalidPIN    = "invalid_pin"
	OutcomeAccountLocked = "account_locked"
	OutcomeNotFound      = "not_found"
	OutcomeInvalidFormat = "invalid_format"
	OutcomePINNotSet     = "pin_not_set"
	OutcomePINExists     = "pin_already_set"
)

type VerifyResult struct {
	Success           bool
	ErrorCode         string
	AttemptsRemaining int
	LockoutRemaining  int // seconds
	Token             string
	ManagerName       string
}

//go:generate mockgen -source=pin_service.go -destination=mock/pin_service_mock.go -package=mock
type Service interface {
	Setup(ctx context.Context, managerID, pin string) (VerifyResult, error)
	Verify(ctx context.Context, managerID, pin string) (VerifyResult, error)
	Change(ctx context.Context, managerID, currentPIN, newPIN string) (VerifyResult, error)
}

type service struct {
	repo       staff.Repository
	deviceSalt string
	tokens     *TokenIssuer
	audits     audit.Service
	clk        clock.Clock
	logger     *zap.Logger
}

func NewService(
	repo staff.Repository,
	deviceSalt string,
	tokens *TokenIssuer,
	audits audit.Service,
	clk clock.Clock,
	logger *zap.Logger,
) Service {
	l := zap.L()
	if logger != nil {
		l = logger
	}
	return &service{
		repo:       repo,
		deviceSalt: deviceSalt,
		tokens:     tokens,
		audits:     audits,
		clk:        clk,
		logger:     l.Named("pinauth.service"),
	}
}

// Hash derives the PIN digest. The salt folds in the device salt and the
// manager id so the same PIN hashes differently per device and per manager.
func Hash(managerID, pin, deviceSalt string) string {
	salt := []byte(deviceSalt + "|" + managerID)
	key := pbkdf2.Key([]byte(pin), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

func (s *service) findManager(ctx context.Context, managerID string) (*staff.Staff, *VerifyResult) {
	row, err := s.repo.FindByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &VerifyResult{ErrorCode: OutcomeNotFound}
		}
		s.logger.Error("load manager failed", zap.String("manager_id", managerID), zap.Error(err))
		return nil, &VerifyResult{ErrorCode: OutcomeNotFound}
	}
	if !row.IsManager() || !row.Active {
		return nil, &VerifyResult{ErrorCode: OutcomeNotFound}
	}
	return row, nil
}

// Setup stores the initial PIN. A manager that already has one must go
// through Change, which verifies the current PIN first.
func (s *service) Setup(ctx context.Context, managerID, pin string) (VerifyResult, error) {
	row, bad := s.findManager(ctx, managerID)
	if bad != nil {
		return *bad, nil
	}
	if row.HasPIN() {
		return VerifyResult{ErrorCode: OutcomePINExists}, nil
	}

	return s.store(ctx, row, pin, audit.ActionPINSetup)
}

func (s *service) store(ctx context.Context, row *staff.Staff, pin, action string) (VerifyResult, error) {
	if !pinPattern.MatchString(pin) {
		return VerifyResult{ErrorCode: OutcomeInvalidFormat}, nil
	}

	managerID := row.ID
	creds := staff.ManagerCredentials{
		PINHash:        Hash(managerID, pin, s.deviceSalt),
		FailedAttempts: 0,
		LockedUntil:    nil,
	}
	if err := s.repo.UpdateCredentials(ctx, managerID, creds); err != nil {
		return VerifyResult{}, err
	}

	s.audits.Record(ctx, action, "staff", managerID, managerID, nil)
	s.logger.Info("pin set", zap.String("manager_id", managerID))
	return VerifyResult{Success: true, ManagerName: row.Name}, nil
}

// Verify runs the lockout state machine. Every transition is persisted to
// the staff record before returning; there is no in-memory-only lockout.
func (s *service) Verify(ctx context.Context, managerID, pin string) (VerifyResult, error) {
	row, bad := s.findManager(ctx, managerID)
	if bad != nil {
		return *bad, nil
	}
	if !row.HasPIN() {
		return VerifyResult{ErrorCode: OutcomePINNotSet}, nil
	}

	now := s.clk.Now()

	// Locked: an unexpired lock rejects without consuming an attempt. An
	// expired lock resets to unlocked before the PIN is evaluated.
	if row.LockedUntil != nil {
		if now.Before(*row.LockedUntil) {
			remaining := int(row.LockedUntil.Sub(now).Round(time.Second).Seconds())
			if remaining < 1 {
				remaining = 1
			}
			return VerifyResult{ErrorCode: OutcomeAccountLocked, LockoutRemaining: remaining}, nil
		}

		row.FailedAttempts = 0
		row.LockedUntil = nil
		if err := s.repo.UpdateCredentials(ctx, managerID, row.ManagerCredentials); err != nil {
			return VerifyResult{}, err
		}
	}

	if Hash(managerID, pin, s.deviceSalt) == row.PINHash {
		if row.FailedAttempts != 0 {
			row.FailedAttempts = 0
			if err := s.repo.UpdateCredentials(ctx, managerID, row.ManagerCredentials); err != nil {
				return VerifyResult{}, err
			}
		}

		token, err := s.tokens.Issue(row.ID, row.Name, now)
		if err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{Success: true, Token: token, ManagerName: row.Name}, nil
	}

	row.FailedAttempts++
	if row.FailedAttempts >= maxFailedAttempts {
		until := now.Add(lockoutDuration)
		row.LockedUntil = &until
		if err := s.repo.UpdateCredentials(ctx, managerID, row.ManagerCredentials); err != nil {
			return VerifyResult{}, err
		}

		s.logger.Warn("manager locked out",
			zap.String("manager_id", managerID),
			zap.Time("until", until),
		)
		return VerifyResult{
			ErrorCode:        OutcomeAccountLocked,
			LockoutRemaining: int(lockoutDuration.Seconds()),
		}, nil
	}

	if err := s.repo.UpdateCredentials(ctx, managerID, row.ManagerCredentials); err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		ErrorCode:         OutcomeInvalidPIN,
		AttemptsRemaining: maxFailedAttempts - row.FailedAttempts,
	}, nil
}

// Change requires the current PIN to verify first, then stores the new one.
func (s *service) Change(ctx context.Context, managerID, currentPIN, newPIN string) (VerifyResult, error) {
	res, err := s.Verify(ctx, managerID, currentPIN)
	if err != nil {
		return VerifyResult{}, err
	}
	if !res.Success {
		return res, nil
	}

	row, bad := s.findManager(ctx, managerID)
	if bad != nil {
		return *bad, nil
	}
	return s.store(ctx, row, newPIN, audit.ActionPINChanged)
}
