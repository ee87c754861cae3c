package services_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/models"
	"github.com/carebridge/securitycore/internal/services"
	pkgauth "github.com/carebridge/securitycore/pkg/auth"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTOTPManager(t *testing.T) *auth.TOTPManager {
	t.Helper()
	mgr, err := auth.NewTOTPManager(bytes.Repeat([]byte{0x42}, 32), "CareBridge Test")
	require.NoError(t, err)
	return mgr
}

func codeFor(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func newTestMFAService(repo *services.MockAccountRepository, totpMgr *auth.TOTPManager, eventRepo *services.MockSecurityEventRepository) *services.MFAService {
	logger := testLogger()
	audit := services.NewAuditService(eventRepo, &services.MockAuditLogRepository{}, logger)
	return services.NewMFAService(repo, totpMgr, audit, logger)
}

func TestMFAService_InitiateSetup(t *testing.T) {
	t.Run("provisions an encrypted secret and returns enrollment material", func(t *testing.T) {
		totpMgr := testTOTPManager(t)
		account := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")

		var storedCiphertext, storedNonce []byte
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
			UpdateMFASecretFunc: func(ctx context.Context, id string, ciphertext, nonce []byte) error {
				storedCiphertext = ciphertext
				storedNonce = nonce
				return nil
			},
		}
		eventRepo := &services.MockSecurityEventRepository{}
		svc := newTestMFAService(repo, totpMgr, eventRepo)

		result, err := svc.InitiateSetup(context.Background(), "acct_1", pkghttp.ClientContext{})
		require.NoError(t, err)

		assert.NotEmpty(t, result.Secret)
		assert.Contains(t, result.ProvisioningURI, "otpauth://totp/")
		assert.True(t, strings.HasPrefix(result.QRCodeDataURL, "data:image/png;base64,"))

		// Stored form round-trips to the returned secret
		require.NotEmpty(t, storedCiphertext)
		decrypted, err := totpMgr.DecryptSecret(storedCiphertext, storedNonce)
		require.NoError(t, err)
		assert.Equal(t, result.Secret, decrypted)

		require.Len(t, eventRepo.Created, 1)
		assert.Equal(t, models.EventTypeMFASetupStarted, eventRepo.Created[0].EventType)
	})

	t.Run("rejects setup when MFA is already enabled", func(t *testing.T) {
		account := services.NewTestAccountWithMFA("acct_1", "nurse@clinic.test", "Nurse", []byte{1}, []byte{2})
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
		}
		svc := newTestMFAService(repo, testTOTPManager(t), &services.MockSecurityEventRepository{})

		_, err := svc.InitiateSetup(context.Background(), "acct_1", pkghttp.ClientContext{})
		assert.ErrorIs(t, err, models.ErrMFAAlreadyEnabled)
	})

	t.Run("repeated setup replaces the pending secret", func(t *testing.T) {
		totpMgr := testTOTPManager(t)
		account := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")
		updates := 0
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
			UpdateMFASecretFunc: func(ctx context.Context, id string, ciphertext, nonce []byte) error {
				updates++
				account.MFASecretEncrypted = ciphertext
				account.MFASecretNonce = nonce
				return nil
			},
		}
		svc := newTestMFAService(repo, totpMgr, &services.MockSecurityEventRepository{})

		first, err := svc.InitiateSetup(context.Background(), "acct_1", pkghttp.ClientContext{})
		require.NoError(t, err)
		second, err := svc.InitiateSetup(context.Background(), "acct_1", pkghttp.ClientContext{})
		require.NoError(t, err)

		assert.Equal(t, 2, updates)
		assert.NotEqual(t, first.Secret, second.Secret)
	})
}

func TestMFAService_VerifySetup(t *testing.T) {
	setup := func(t *testing.T) (*services.MFAService, *models.Account, string, *services.MockSecurityEventRepository, *bool) {
		totpMgr := testTOTPManager(t)
		account := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")

		secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
		ciphertext, nonce, err := totpMgr.EncryptSecret(secret)
		require.NoError(t, err)
		account.MFASecretEncrypted = ciphertext
		account.MFASecretNonce = nonce

		enabled := false
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
			EnableMFAFunc: func(ctx context.Context, id string, enrolledAt time.Time) error {
				enabled = true
				return nil
			},
		}
		eventRepo := &services.MockSecurityEventRepository{}
		return newTestMFAService(repo, totpMgr, eventRepo), account, secret, eventRepo, &enabled
	}

	t.Run("valid first code enables MFA", func(t *testing.T) {
		svc, _, secret, eventRepo, enabled := setup(t)

		err := svc.VerifySetup(context.Background(), "acct_1", codeFor(t, secret, time.Now()), pkghttp.ClientContext{})
		require.NoError(t, err)
		assert.True(t, *enabled)

		require.Len(t, eventRepo.Created, 1)
		assert.Equal(t, models.EventTypeMFAEnabled, eventRepo.Created[0].EventType)
	})

	t.Run("invalid code leaves MFA pending and records the failure", func(t *testing.T) {
		svc, _, _, eventRepo, enabled := setup(t)

		err := svc.VerifySetup(context.Background(), "acct_1", "000000", pkghttp.ClientContext{})
		assert.ErrorIs(t, err, models.ErrMFAInvalidCode)
		assert.False(t, *enabled)

		require.Len(t, eventRepo.Created, 1)
		assert.Equal(t, models.EventTypeMFAVerifyFailed, eventRepo.Created[0].EventType)
	})

	t.Run("verify without a pending secret fails", func(t *testing.T) {
		account := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
		}
		svc := newTestMFAService(repo, testTOTPManager(t), &services.MockSecurityEventRepository{})

		err := svc.VerifySetup(context.Background(), "acct_1", "123456", pkghttp.ClientContext{})
		assert.ErrorIs(t, err, models.ErrMFANotConfigured)
	})
}

func TestMFAService_VerifyCode(t *testing.T) {
	totpMgr := testTOTPManager(t)
	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	ciphertext, nonce, err := totpMgr.EncryptSecret(secret)
	require.NoError(t, err)

	t.Run("valid code passes and records the matched step", func(t *testing.T) {
		account := services.NewTestAccountWithMFA("acct_1", "nurse@clinic.test", "Nurse", ciphertext, nonce)
		var recordedStep int64
		repo := &services.MockAccountRepository{
			SetMFALastUsedStepFunc: func(ctx context.Context, id string, step int64) error {
				recordedStep = step
				return nil
			},
		}
		svc := newTestMFAService(repo, totpMgr, &services.MockSecurityEventRepository{})

		valid, err := svc.VerifyCode(context.Background(), account, codeFor(t, secret, time.Now()))
		require.NoError(t, err)
		assert.True(t, valid)
		assert.NotZero(t, recordedStep)
	})

	t.Run("same code is rejected on replay", func(t *testing.T) {
		account := services.NewTestAccountWithMFA("acct_1", "nurse@clinic.test", "Nurse", ciphertext, nonce)
		repo := &services.MockAccountRepository{
			SetMFALastUsedStepFunc: func(ctx context.Context, id string, step int64) error {
				account.MFALastUsedStep = &step
				return nil
			},
		}
		svc := newTestMFAService(repo, totpMgr, &services.MockSecurityEventRepository{})

		code := codeFor(t, secret, time.Now())

		valid, err := svc.VerifyCode(context.Background(), account, code)
		require.NoError(t, err)
		require.True(t, valid)

		valid, err = svc.VerifyCode(context.Background(), account, code)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("MFA disabled account is refused", func(t *testing.T) {
		account := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")
		svc := newTestMFAService(&services.MockAccountRepository{}, totpMgr, &services.MockSecurityEventRepository{})

		_, err := svc.VerifyCode(context.Background(), account, "123456")
		assert.ErrorIs(t, err, models.ErrMFANotConfigured)
	})
}

func TestMFAService_Disable(t *testing.T) {
	passwordHash, err := pkgauth.HashPassword("Str0ngPassw0rd!")
	require.NoError(t, err)

	setup := func(t *testing.T) (*services.MFAService, *services.MockSecurityEventRepository, *bool) {
		account := services.NewTestAccountWithMFA("acct_1", "nurse@clinic.test", "Nurse", []byte{1}, []byte{2})
		account.PasswordHash = passwordHash

		disabled := false
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
			DisableMFAFunc: func(ctx context.Context, id string) error {
				disabled = true
				return nil
			},
		}
		eventRepo := &services.MockSecurityEventRepository{}
		return newTestMFAService(repo, testTOTPManager(t), eventRepo), eventRepo, &disabled
	}

	t.Run("correct password disables MFA", func(t *testing.T) {
		svc, eventRepo, disabled := setup(t)

		err := svc.Disable(context.Background(), "acct_1", "Str0ngPassw0rd!", pkghttp.ClientContext{})
		require.NoError(t, err)
		assert.True(t, *disabled)

		require.Len(t, eventRepo.Created, 1)
		assert.Equal(t, models.EventTypeMFADisabled, eventRepo.Created[0].EventType)
		assert.Equal(t, models.SeverityWarning, eventRepo.Created[0].Severity)
	})

	t.Run("failed re-proof leaves MFA enabled and emits a warning event", func(t *testing.T) {
		svc, eventRepo, disabled := setup(t)

		err := svc.Disable(context.Background(), "acct_1", "wrong-password", pkghttp.ClientContext{})
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		assert.False(t, *disabled)

		require.Len(t, eventRepo.Created, 1)
		assert.Equal(t, models.EventTypeMFADisableFailed, eventRepo.Created[0].EventType)
		assert.Equal(t, models.SeverityWarning, eventRepo.Created[0].Severity)
	})

	t.Run("disable without MFA configured fails", func(t *testing.T) {
		account := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
		}
		svc := newTestMFAService(repo, testTOTPManager(t), &services.MockSecurityEventRepository{})

		err := svc.Disable(context.Background(), "acct_1", "whatever", pkghttp.ClientContext{})
		assert.ErrorIs(t, err, models.ErrMFANotConfigured)
	})
}

func TestMFAService_Status(t *testing.T) {
	cases := []struct {
		name    string
		account *models.Account
		want    string
	}{
		{
			name:    "never set up",
			account: services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse"),
			want:    "disabled",
		},
		{
			name: "pending verification",
			account: func() *models.Account {
				a := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")
				a.MFASecretEncrypted = []byte{1, 2, 3}
				return a
			}(),
			want: "pending",
		},
		{
			name:    "enabled",
			account: services.NewTestAccountWithMFA("acct_1", "nurse@clinic.test", "Nurse", []byte{1}, []byte{2}),
			want:    "enabled",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &services.MockAccountRepository{
				GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
					return tc.account, nil
				},
			}
			svc := newTestMFAService(repo, testTOTPManager(t), &services.MockSecurityEventRepository{})

			status, err := svc.Status(context.Background(), "acct_1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status.State)
		})
	}
}
