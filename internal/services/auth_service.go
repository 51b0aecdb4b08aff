package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/authstate"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/mailer"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MailSender delivers one email.
type MailSender interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

// StatePublisher receives every sign-in and sign-out.
type StatePublisher interface {
	Publish(uid uuid.UUID, state authstate.State)
}

type AuthService struct {
	db     *gorm.DB
	cfg    *config.Config
	mail   MailSender
	states StatePublisher
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, mail MailSender, states StatePublisher) *AuthService {
	return &AuthService{
		db:     db,
		cfg:    cfg,
		mail:   mail,
		states: states,
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkCredentialsShape(email, password string) error {
	if !emailPattern.MatchString(email) {
		return authErr(CodeInvalidEmail)
	}
	if len(password) < minPasswordLength {
		return authErr(CodeWeakPassword)
	}
	return nil
}

// SignUp creates the account and its profile in one transaction, so a failed
// profile write never leaves an account behind.
func (s *AuthService) SignUp(ctx context.Context, email, password, name string) (*dto.Session, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := checkCredentialsShape(email, password); err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", "rejected").Inc()
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := models.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  name,
	}
	profile := models.Profile{
		UID:          account.ID,
		Email:        email,
		DisplayName:  name,
		Role:         models.RoleCustomer,
		Reservations: datatypes.JSONSlice[string]{},
		Preferences:  datatypes.NewJSONType(models.DefaultPreferences()),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return authErr(CodeEmailInUse)
		}
		if err := tx.Create(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return authErr(CodeEmailInUse)
			}
			return fmt.Errorf("failed to create account: %w", err)
		}
		if err := tx.Omit("Account").Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", "error").Inc()
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("signup", "ok").Inc()
	slog.Info("account created", "component", "auth", "user_id", account.ID.String())

	session, err := s.issueSession(ctx, &account, &profile)
	if err != nil {
		return nil, err
	}
	s.publish(account.ID, authstate.SignedIn(&account, &profile))
	return session, nil
}

// SignIn authenticates and then records lastLogin. A lastLogin failure is
// logged and does not fail the sign-in.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*dto.Session, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, authErr(CodeInvalidEmail)
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("signin", "rejected").Inc()
		return nil, authErr(CodeUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		metrics.AuthAttempts.WithLabelValues("signin", "rejected").Inc()
		return nil, authErr(CodeWrongPassword)
	}

	profile, err := s.loadProfile(ctx, account.ID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("uid = ?", account.ID).Update("last_login", now).Error; err != nil {
		slog.Warn("failed to record last login", "component", "auth", "user_id", account.ID.String(), "error", err)
	} else if profile != nil {
		profile.LastLogin = &now
	}

	metrics.AuthAttempts.WithLabelValues("signin", "ok").Inc()
	session, err := s.issueSession(ctx, &account, profile)
	if err != nil {
		return nil, err
	}
	s.publish(account.ID, authstate.SignedIn(&account, profile))
	return session, nil
}

// SignOut revokes the session identified by refreshToken.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	var stored models.RefreshToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", hashToken(refreshToken)).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&stored).Update("revoked", true).Error; err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	metrics.AuthAttempts.WithLabelValues("signout", "ok").Inc()
	s.publish(stored.AccountID, authstate.SignedOut())
	return nil
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.Session, error) {
	var stored models.RefreshToken
	err := s.db.WithContext(ctx).Where("token_hash = ? AND revoked = false", hashToken(refreshToken)).First(&stored).Error
	if err != nil {
		return nil, authErr(CodeInvalidCredential)
	}

	res := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = false", stored.ID).
		Update("revoked", true)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to revoke session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, authErr(CodeInvalidCredential)
	}
	if s.now().After(stored.ExpiresAt) {
		return nil, authErr(CodeInvalidCredential)
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", stored.AccountID).Error; err != nil {
		return nil, authErr(CodeUserNotFound)
	}
	profile, err := s.loadProfile(ctx, account.ID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}
	return s.issueSession(ctx, &account, profile)
}

// ResetPassword emails a single-use reset link. Success means the request
// was accepted, not that the email arrived.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return authErr(CodeInvalidEmail)
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return authErr(CodeUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	raw, err := randomToken()
	if err != nil {
		return err
	}
	reset := models.PasswordReset{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(s.cfg.PasswordResetExpiry),
	}
	if err := s.db.WithContext(ctx).Omit("Account").Create(&reset).Error; err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := strings.TrimRight(s.cfg.SiteURL, "/") + "/reset-password?token=" + url.QueryEscape(raw)
	msg := &mailer.Message{
		To:      account.Email,
		ToName:  account.DisplayName,
		Subject: "Reset your password - " + s.cfg.RestaurantName,
		Text: fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in %s.\n\n%s\n\nIf you did not ask for this, ignore this email.\n\n%s\n",
			account.DisplayName, s.cfg.PasswordResetExpiry, link, s.cfg.RestaurantName),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		slog.Error("failed to send reset email", "component", "auth", "user_id", account.ID.String(), "error", err)
		return &AuthError{Code: CodeNetworkFailed, Err: err}
	}
	metrics.AuthAttempts.WithLabelValues("reset", "ok").Inc()
	return nil
}

// ConfirmPasswordReset consumes a reset token, sets the new password and
// revokes every open session of the account.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return authErr(CodeWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var accountID uuid.UUID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset models.PasswordReset
		if err := tx.Where("token_hash = ? AND used_at IS NULL", hashToken(token)).First(&reset).Error; err != nil {
			return authErr(CodeExpiredActionCode)
		}
		now := s.now()
		if now.After(reset.ExpiresAt) {
			return authErr(CodeExpiredActionCode)
		}
		accountID = reset.AccountID

		if err := tx.Model(&reset).Update("used_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).Where("id = ?", reset.AccountID).Update("password_hash", string(hash)).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).Where("account_id = ?", reset.AccountID).Update("revoked", true).Error
	})
	if err != nil {
		return err
	}
	s.publish(accountID, authstate.SignedOut())
	return nil
}

// GetUserData reads the member's profile.
func (s *AuthService) GetUserData(ctx context.Context, uid uuid.UUID) (*models.Profile, error) {
	profile, err := s.loadProfile(ctx, uid)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, &AuthError{Code: CodeProfileNotFound, Err: err}
	}
	return profile, err
}

// CurrentState merges the account with its profile. An unknown account is
// reported as signed out.
func (s *AuthService) CurrentState(ctx context.Context, uid uuid.UUID) (authstate.State, error) {
	var account models.Account
	err := s.db.WithContext(ctx).First(&account, "id = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return authstate.SignedOut(), nil
	}
	if err != nil {
		return authstate.State{}, fmt.Errorf("failed to load account: %w", err)
	}
	profile, err := s.loadProfile(ctx, uid)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return authstate.State{}, err
	}
	return authstate.SignedIn(&account, profile), nil
}

func (s *AuthService) loadProfile(ctx context.Context, uid uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).First(&profile, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

func (s *AuthService) publish(uid uuid.UUID, state authstate.State) {
	if s.states != nil {
		s.states.Publish(uid, state)
	}
}

func (s *AuthService) issueSession(ctx context.Context, account *models.Account, profile *models.Profile) (*dto.Session, error) {
	role := models.RoleCustomer
	if profile != nil {
		role = profile.Role
	}

	accessToken, err := s.generateAccessToken(account, role)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateRefreshToken(ctx, account)
	if err != nil {
		return nil, err
	}

	return &dto.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.JWTAccessExpiry.Seconds()),
		User:         authstate.SignedIn(account, profile).User,
	}, nil
}

func (s *AuthService) generateAccessToken(account *models.Account, role string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   account.ID.String(),
		"email": account.Email,
		"role":  role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, account *models.Account) (string, error) {
	raw, err := randomToken()
	if err != nil {
		return "", err
	}

	record := models.RefreshToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(s.cfg.JWTRefreshExpiry),
	}
	if err := s.db.WithContext(ctx).Omit("Account").Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return raw, nil
}

func randomToken() (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(rawBytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
