//go:build integration

package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/authstate"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/database/dbtest"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/mailer"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
)

type capturedMail struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (c *capturedMail) Send(ctx context.Context, msg *mailer.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, *msg)
	return nil
}

type capturedStates struct {
	mu     sync.Mutex
	states map[uuid.UUID][]authstate.State
}

func (c *capturedStates) Publish(uid uuid.UUID, s authstate.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states == nil {
		c.states = make(map[uuid.UUID][]authstate.State)
	}
	c.states[uid] = append(c.states[uid], s)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "integration-secret",
		JWTAccessExpiry:     15 * time.Minute,
		JWTRefreshExpiry:    time.Hour,
		PasswordResetExpiry: time.Hour,
		RestaurantName:      "The Spice Garden",
		SiteURL:             "https://spicegarden.example",
	}
}

func authCode(t *testing.T, err error) string {
	t.Helper()
	var ae *AuthError
	require.True(t, errors.As(err, &ae), "expected AuthError, got %v", err)
	return ae.Code
}

func TestAuthService_Lifecycle(t *testing.T) {
	db := dbtest.New(t)
	mail := &capturedMail{}
	states := &capturedStates{}
	svc := NewAuthService(db, testConfig(), mail, states)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, " Asha@Example.com ", "secret1", "Asha Rao")
	require.NoError(t, err)
	uid := uuid.MustParse(session.User.UID)
	assert.Equal(t, "asha@example.com", session.User.Email)
	assert.NotEmpty(t, session.AccessToken)

	profile, err := svc.GetUserData(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, profile.Role)
	assert.Empty(t, profile.Reservations)
	assert.True(t, profile.Preferences.Data().EmailNotifications)
	assert.False(t, profile.Preferences.Data().SMSNotifications)

	t.Run("duplicate sign-up", func(t *testing.T) {
		_, err := svc.SignUp(ctx, "asha@example.com", "another1", "Someone")
		assert.Equal(t, CodeEmailInUse, authCode(t, err))

		var accounts, profiles int64
		db.Model(&models.Account{}).Count(&accounts)
		db.Model(&models.Profile{}).Count(&profiles)
		assert.Equal(t, int64(1), accounts)
		assert.Equal(t, int64(1), profiles)
	})

	t.Run("sign in", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "asha@example.com", "wrong-one")
		assert.Equal(t, CodeWrongPassword, authCode(t, err))

		_, err = svc.SignIn(ctx, "nobody@example.com", "secret1")
		assert.Equal(t, CodeUserNotFound, authCode(t, err))

		s, err := svc.SignIn(ctx, "asha@example.com", "secret1")
		require.NoError(t, err)
		require.NotNil(t, s.User.Profile)
		assert.NotNil(t, s.User.Profile.LastLogin)
	})

	t.Run("refresh rotates", func(t *testing.T) {
		next, err := svc.Refresh(ctx, session.RefreshToken)
		require.NoError(t, err)
		_, err = svc.Refresh(ctx, session.RefreshToken)
		assert.Equal(t, CodeInvalidCredential, authCode(t, err))
		session = next
	})

	t.Run("sign out publishes signed-out", func(t *testing.T) {
		require.NoError(t, svc.SignOut(ctx, session.RefreshToken))
		published := states.states[uid]
		require.NotEmpty(t, published)
		assert.Equal(t, authstate.SignedOut(), published[len(published)-1])
	})

	t.Run("password reset", func(t *testing.T) {
		require.NoError(t, svc.ResetPassword(ctx, "asha@example.com"))
		require.Len(t, mail.msgs, 1)

		link := mail.msgs[0].Text[strings.Index(mail.msgs[0].Text, "https://"):]
		link = strings.Fields(link)[0]
		u, err := url.Parse(link)
		require.NoError(t, err)
		token := u.Query().Get("token")

		require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "newsecret"))
		err = svc.ConfirmPasswordReset(ctx, token, "newsecret")
		assert.Equal(t, CodeExpiredActionCode, authCode(t, err))

		_, err = svc.SignIn(ctx, "asha@example.com", "newsecret")
		assert.NoError(t, err)
	})

	t.Run("missing profile", func(t *testing.T) {
		_, err := svc.GetUserData(ctx, uuid.New())
		assert.Equal(t, CodeProfileNotFound, authCode(t, err))
	})
}

func TestAuthService_RefreshSingleUseUnderRace(t *testing.T) {
	db := dbtest.New(t)
	svc := NewAuthService(db, testConfig(), &capturedMail{}, &capturedStates{})
	ctx := context.Background()

	session, err := svc.SignUp(ctx, "ravi@example.com", "secret1", "Ravi")
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Refresh(ctx, session.RefreshToken); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestProfileService_AppendReservation(t *testing.T) {
	db := dbtest.New(t)
	auth := NewAuthService(db, testConfig(), &capturedMail{}, nil)
	profiles := NewProfileService(db)
	ctx := context.Background()

	session, err := auth.SignUp(ctx, "ravi@example.com", "secret1", "Ravi")
	require.NoError(t, err)
	uid := uuid.MustParse(session.User.UID)

	first, second := uuid.New(), uuid.New()
	require.NoError(t, profiles.AppendReservation(ctx, uid, first))
	require.NoError(t, profiles.AppendReservation(ctx, uid, second))

	p, err := profiles.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{first.String(), second.String()}, []string(p.Reservations))

	name := "Ravi K"
	updated, err := profiles.Update(ctx, uid, ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", updated.DisplayName)
	assert.Equal(t, models.RoleCustomer, updated.Role)
}
