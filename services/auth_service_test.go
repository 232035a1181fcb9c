package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/orbisplace/orbis-api/config"
	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/utils"
)

type sentMail struct {
	kind, to, token string
}

type mailerStub struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *mailerStub) record(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentMail{kind: kind, to: to, token: token})
	return nil
}

func (m *mailerStub) SendVerificationEmail(_ context.Context, to, _, token string) error {
	return m.record("verify", to, token)
}

func (m *mailerStub) SendPasswordResetEmail(_ context.Context, to, _, token string) error {
	return m.record("reset", to, token)
}

func (m *mailerStub) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

var testAuthConfig = config.AuthConfig{JWTSecretKey: "test-secret-0123456789", AccessTokenTTL: time.Hour}

func newAuthFixture(t *testing.T) (*memStore, *mailerStub, *authService) {
	t.Helper()
	store := newMemStore()
	mailer := &mailerStub{}
	svc := NewAuthService(userRepoStub{store}, mailer, testAuthConfig, nil).(*authService)
	return store, mailer, svc
}

func TestRegisterAndLogin(t *testing.T) {
	store, mailer, svc := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: " Steve@Example.com ", Username: "steve", Password: "diamonds!"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "steve@example.com" || user.Role != models.RoleUser || user.EmailVerified {
		t.Errorf("user = %+v", user)
	}
	if user.PasswordHash == "diamonds!" {
		t.Error("password stored in plain text")
	}
	sent := mailer.last()
	if sent.kind != "verify" || sent.to != "steve@example.com" || sent.token == "" {
		t.Errorf("mail = %+v", sent)
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "steve@example.com", Username: "other", Password: "diamonds!"}); !errors.Is(err, ErrUserEmailConflict) {
		t.Errorf("duplicate email: err = %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "alex@example.com", Username: "steve", Password: "diamonds!"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate username: err = %v", err)
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "steve@example.com", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "diamonds!"}); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("unknown email: err = %v", err)
	}

	result, err := svc.Login(ctx, LoginInput{Email: "STEVE@example.com", Password: "diamonds!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := utils.ParseJWT([]byte(testAuthConfig.JWTSecretKey), result.Token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != string(models.RoleUser) {
		t.Errorf("claims = %+v", claims)
	}

	if err := svc.VerifyEmail(ctx, "bogus"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("bogus token: err = %v", err)
	}
	if err := svc.VerifyEmail(ctx, sent.token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !store.users[user.ID].EmailVerified {
		t.Error("email not marked verified")
	}
	if err := svc.VerifyEmail(ctx, sent.token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reused token: err = %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	_, _, svc := newAuthFixture(t)
	tests := map[string]struct {
		input RegisterInput
		field string
	}{
		"bad email":      {RegisterInput{Email: "steve", Username: "steve", Password: "diamonds!"}, "email"},
		"short password": {RegisterInput{Email: "s@example.com", Username: "steve", Password: "short"}, "password"},
		"bad username":   {RegisterInput{Email: "s@example.com", Username: "st eve", Password: "diamonds!"}, "username"},
		"long password":  {RegisterInput{Email: "s@example.com", Username: "steve", Password: strings.Repeat("p", 73)}, "password"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Fields[tt.field] == "" {
				t.Fatalf("err = %v, want %s error", err, tt.field)
			}
		})
	}
}

func TestRegisterSucceedsWhenMailFails(t *testing.T) {
	store, mailer, svc := newAuthFixture(t)
	mailer.fail = true
	user, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Username: "alex", Password: "diamonds!"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := store.users[user.ID]; !ok {
		t.Error("user not stored")
	}
}

func TestPasswordReset(t *testing.T) {
	store, mailer, svc := newAuthFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	user, err := svc.Register(ctx, RegisterInput{Email: "steve@example.com", Username: "steve", Password: "diamonds!"})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ForgotPassword(ctx, "nobody@example.com"); err != nil {
		t.Errorf("unknown email must not be revealed: %v", err)
	}
	if mailer.last().kind != "verify" {
		t.Error("reset mail sent for unknown email")
	}

	if err := svc.ForgotPassword(ctx, "steve@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	reset := mailer.last()
	if reset.kind != "reset" || reset.token == "" {
		t.Fatalf("mail = %+v", reset)
	}

	if err := svc.ResetPassword(ctx, reset.token, "short"); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("short password: err = %v", err)
	}

	now = now.Add(resetTokenTTL + time.Second)
	if err := svc.ResetPassword(ctx, reset.token, "emeralds!"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: err = %v", err)
	}

	now = now.Add(-resetTokenTTL)
	if err := svc.ResetPassword(ctx, reset.token, "emeralds!"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if store.users[user.ID].PasswordResetToken != nil {
		t.Error("reset token not cleared")
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "steve@example.com", Password: "emeralds!"}); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if err := svc.ResetPassword(ctx, reset.token, "netherite!"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reused reset token: err = %v", err)
	}
}
