package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/internal/sms"
	apperrors "github.com/entrelaunch/platform/pkg/errors"
)

const (
	defaultOtpTTL         = 5 * time.Minute
	defaultOtpMaxAttempts = 5
)

var (
	// ErrOtpInvalid covers unknown, expired, consumed and mismatched codes.
	ErrOtpInvalid = apperrors.New("OTP_INVALID", "Invalid or expired verification code", http.StatusBadRequest)
	// ErrOtpTooManyAttempts is returned once the attempt budget is spent.
	ErrOtpTooManyAttempts = apperrors.New("OTP_TOO_MANY_ATTEMPTS", "Too many verification attempts", http.StatusTooManyRequests)
)

// OtpService issues and verifies single-use SMS verification codes. Codes
// are HOTP values derived from a shared secret and a monotonic counter;
// only their SHA-256 hash is stored.
type OtpService struct {
	db      *gorm.DB
	sender  sms.Sender
	secret  string
	ttl     time.Duration
	maxTry  int
	counter atomic.Uint64
	now     func() time.Time
}

// NewOtpService constructs an OtpService. The secret must be a base32
// encoded HOTP key shared by all issued codes.
func NewOtpService(db *gorm.DB, sender sms.Sender, secret string) (*OtpService, error) {
	if db == nil {
		return nil, errors.New("otp service: db is required")
	}
	if sender == nil {
		return nil, errors.New("otp service: sms sender is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("otp service: secret is required")
	}

	svc := &OtpService{
		db:     db,
		sender: sender,
		secret: secret,
		ttl:    defaultOtpTTL,
		maxTry: defaultOtpMaxAttempts,
		now:    time.Now,
	}
	svc.counter.Store(uint64(time.Now().UnixNano()))
	return svc, nil
}

// WithTTL overrides the code validity window.
func (s *OtpService) WithTTL(ttl time.Duration) *OtpService {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// WithClock overrides the time source, primarily for tests.
func (s *OtpService) WithClock(now func() time.Time) *OtpService {
	if now != nil {
		s.now = now
	}
	return s
}

// Request generates a fresh code for the phone number, invalidates any
// earlier live codes and delivers the new one over SMS.
func (s *OtpService) Request(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperrors.NewBadRequest("phone number is required")
	}

	counter := s.counter.Add(1)
	code, err := hotp.GenerateCodeCustom(s.secret, counter, hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("otp service: generate code: %w", err)
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A fresh request supersedes any code still in flight.
		if err := tx.Model(&models.OtpCode{}).
			Where("phone = ? AND consumed_at IS NULL AND deleted_at IS NULL", phone).
			Update("consumed_at", &now).Error; err != nil {
			return fmt.Errorf("otp service: supersede codes: %w", err)
		}

		record := models.OtpCode{
			Phone:     phone,
			CodeHash:  hashCode(code),
			Counter:   counter,
			ExpiresAt: now.Add(s.ttl),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("otp service: store code: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	msg := sms.Message{
		To:   phone,
		Body: fmt.Sprintf("Your EntreLaunch verification code is %s", code),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("otp service: deliver code: %w", err)
	}
	return nil
}

// Verify checks the presented code for the phone number and consumes it on
// success. Each failed attempt is counted; once the budget is spent the code
// is unusable even if the correct value is presented later.
func (s *OtpService) Verify(ctx context.Context, phone, code string) error {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return ErrOtpInvalid
	}

	now := s.now()

	var record models.OtpCode
	err := s.db.WithContext(ctx).
		Where("phone = ? AND consumed_at IS NULL AND deleted_at IS NULL", phone).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOtpInvalid
	}
	if err != nil {
		return fmt.Errorf("otp service: load code: %w", err)
	}

	if !record.Usable(now) {
		return ErrOtpInvalid
	}
	if record.Attempts >= s.maxTry {
		return ErrOtpTooManyAttempts
	}

	if record.CodeHash != hashCode(code) {
		update := s.db.WithContext(ctx).Model(&record).
			Update("attempts", gorm.Expr("attempts + 1"))
		if update.Error != nil {
			return fmt.Errorf("otp service: record attempt: %w", update.Error)
		}
		if record.Attempts+1 >= s.maxTry {
			return ErrOtpTooManyAttempts
		}
		return ErrOtpInvalid
	}

	err = s.db.WithContext(ctx).Model(&record).
		Updates(map[string]any{"consumed_at": &now}).Error
	if err != nil {
		return fmt.Errorf("otp service: consume code: %w", err)
	}
	return nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
