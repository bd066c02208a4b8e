package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/database/testutil"
	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/internal/sms"
)

const testOtpSecret = "JBSWY3DPEHPK3PXP"

var otpCodePattern = regexp.MustCompile(`\d{6}`)

// recordingSender captures delivered messages for assertions.
type recordingSender struct {
	messages []sms.Message
}

func (r *recordingSender) Send(ctx context.Context, msg sms.Message) error {
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingSender) lastCode(t *testing.T) string {
	t.Helper()

	require.NotEmpty(t, r.messages)
	code := otpCodePattern.FindString(r.messages[len(r.messages)-1].Body)
	require.NotEmpty(t, code)
	return code
}

func newTestOtpService(t *testing.T) (*OtpService, *recordingSender, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	sender := &recordingSender{}
	svc, err := NewOtpService(db, sender, testOtpSecret)
	require.NoError(t, err)
	return svc, sender, db
}

func TestOtpRequestAndVerify(t *testing.T) {
	svc, sender, _ := newTestOtpService(t)
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "+15550001111"))
	code := sender.lastCode(t)

	require.NoError(t, svc.Verify(ctx, "+15550001111", code))
}

func TestOtpCodeIsSingleUse(t *testing.T) {
	svc, sender, _ := newTestOtpService(t)
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "+15550001111"))
	code := sender.lastCode(t)

	require.NoError(t, svc.Verify(ctx, "+15550001111", code))
	require.ErrorIs(t, svc.Verify(ctx, "+15550001111", code), ErrOtpInvalid)
}

func TestOtpWrongCode(t *testing.T) {
	svc, _, _ := newTestOtpService(t)
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "+15550001111"))
	require.ErrorIs(t, svc.Verify(ctx, "+15550001111", "000000"), ErrOtpInvalid)
}

func TestOtpNewRequestSupersedesOldCode(t *testing.T) {
	svc, sender, _ := newTestOtpService(t)
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "+15550001111"))
	first := sender.lastCode(t)

	require.NoError(t, svc.Request(ctx, "+15550001111"))
	second := sender.lastCode(t)
	require.NotEqual(t, first, second)

	require.ErrorIs(t, svc.Verify(ctx, "+15550001111", first), ErrOtpInvalid)
	require.NoError(t, svc.Verify(ctx, "+15550001111", second))
}

func TestOtpExpiredCode(t *testing.T) {
	svc, sender, _ := newTestOtpService(t)
	ctx := context.Background()

	now := time.Now()
	svc.WithClock(func() time.Time { return now })

	require.NoError(t, svc.Request(ctx, "+15550001111"))
	code := sender.lastCode(t)

	now = now.Add(6 * time.Minute)

	require.ErrorIs(t, svc.Verify(ctx, "+15550001111", code), ErrOtpInvalid)
}

func TestOtpAttemptBudget(t *testing.T) {
	svc, sender, db := newTestOtpService(t)
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "+15550001111"))
	code := sender.lastCode(t)

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, svc.Verify(ctx, "+15550001111", "000000"), ErrOtpInvalid)
	}
	require.ErrorIs(t, svc.Verify(ctx, "+15550001111", "000000"), ErrOtpTooManyAttempts)

	// Even the right code is refused once the budget is spent.
	require.ErrorIs(t, svc.Verify(ctx, "+15550001111", code), ErrOtpTooManyAttempts)

	var record models.OtpCode
	require.NoError(t, db.First(&record, "phone = ?", "+15550001111").Error)
	require.Equal(t, 5, record.Attempts)
}

func TestOtpVerifyWithoutRequest(t *testing.T) {
	svc, _, _ := newTestOtpService(t)

	require.ErrorIs(t, svc.Verify(context.Background(), "+15550001111", "123456"), ErrOtpInvalid)
}
