package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"retail-order-service/internal/models"
	"retail-order-service/internal/store"
	"retail-order-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Login identifier kinds
const (
	MatchedByEmail    = "email"
	MatchedByNumber   = "shopid/adminid"
	MatchedByShopName = "shopname"
)

// AccountService handles signup, login and password reset
type AccountService struct {
	repo             store.Repository
	tokens           TokenIssuer
	mailer           OTPMailer
	otpTTL           time.Duration
	allowAdminSignup bool
	production       bool
	hashCost         int
	now              func() time.Time
	logger           *zap.Logger
}

// AccountOptions configures an AccountService
type AccountOptions struct {
	OTPTTL           time.Duration
	AllowAdminSignup bool
	Production       bool
}

// NewAccountService creates a new account service
func NewAccountService(repo store.Repository, tokens TokenIssuer, mailer OTPMailer, opts AccountOptions) *AccountService {
	return &AccountService{
		repo:             repo,
		tokens:           tokens,
		mailer:           mailer,
		otpTTL:           opts.OTPTTL,
		allowAdminSignup: opts.AllowAdminSignup,
		production:       opts.Production,
		hashCost:         bcrypt.DefaultCost,
		now:              time.Now,
		logger:           util.GetLogger(),
	}
}

// SignupRequest represents a new account
type SignupRequest struct {
	Name            string `json:"name"`
	ShopName        string `json:"shopname"`
	Role            string `json:"role"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginResult is a successful login
type LoginResult struct {
	Account   *models.Account
	MatchedBy string
	Token     string
}

// VerifyOTPRequest confirms a reset code and optionally sets a new password
type VerifyOTPRequest struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Signup registers a customer or, when enabled, an administrator
func (s *AccountService) Signup(ctx context.Context, req *SignupRequest) (*models.Account, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.Signup")
	defer span.End()

	if req.Role == "" {
		req.Role = models.RoleCustomer
	}
	if req.Role == models.RoleAdmin && !s.allowAdminSignup {
		return nil, newError(KindForbidden, CodeAdminSignupDisabled, "Admin signup is disabled")
	}
	return s.createAccount(ctx, req)
}

// CreateAdmin registers an administrator regardless of the signup switch
func (s *AccountService) CreateAdmin(ctx context.Context, req *SignupRequest) (*models.Account, error) {
	req.Role = models.RoleAdmin
	return s.createAccount(ctx, req)
}

func (s *AccountService) createAccount(ctx context.Context, req *SignupRequest) (*models.Account, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ShopName = strings.TrimSpace(req.ShopName)

	if req.Role != models.RoleCustomer && req.Role != models.RoleAdmin {
		return nil, validationError(CodeInvalidRole, "Invalid role")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, validationError(CodeInvalidInput, "Name, email and password are required")
	}
	if req.Role == models.RoleCustomer && req.ShopName == "" {
		return nil, validationError(CodeInvalidInput, "Shop name is required")
	}
	if req.Password != req.ConfirmPassword {
		return nil, validationError(CodePasswordMismatch, "Passwords do not match")
	}

	_, err := s.repo.GetAccountByEmail(ctx, req.Email)
	if err == nil {
		return nil, newError(KindConflict, CodeDuplicateEmail, "User with this email already exists")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, unexpected("Server error", err)
	}

	if req.Role == models.RoleCustomer {
		existing, err := s.repo.FindAccountsByShopName(ctx, req.ShopName)
		if err != nil {
			return nil, unexpected("Server error", err)
		}
		for _, a := range existing {
			if a.IsCustomer() {
				return nil, newError(KindConflict, CodeDuplicateShopName, "User with this Shop Name already exists")
			}
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, unexpected("Server error", err)
	}

	account := &models.Account{
		Name:         req.Name,
		Role:         req.Role,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
	}
	if req.Role == models.RoleCustomer {
		shopName := req.ShopName
		account.ShopName = &shopName
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			if dup.Field == "shopname" {
				return nil, newError(KindConflict, CodeDuplicateShopName, "User with this Shop Name already exists")
			}
			return nil, newError(KindConflict, CodeDuplicateEmail, "User with this email already exists")
		}
		return nil, unexpected("Server error", err)
	}

	s.logger.Info("Account created",
		zap.Int64("account_id", account.ID),
		zap.String("role", account.Role))
	return account, nil
}

// Login resolves the identifier to exactly one account and checks the password.
// An identifier containing "@" is an email, an all-digit identifier is a shop
// or admin number, and anything else is a shop name.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.Login")
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, validationError(CodeInvalidInput, "Please provide identifier and password")
	}

	matches, matchedBy, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, unexpected("Server error", err)
	}

	switch {
	case len(matches) == 0:
		return nil, newError(KindNotFound, CodeUserNotFound, "User not found")
	case len(matches) > 1:
		s.logger.Warn("Login identifier matches several accounts", zap.String("matched_by", matchedBy))
		return nil, newError(KindUnauthorized, CodeAmbiguousIdentifier, "Identifier matches more than one account")
	}

	account := &matches[0]
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, newError(KindUnauthorized, CodeIncorrectPassword, "Incorrect password")
	}

	token, err := s.tokens.Issue(account)
	if err != nil {
		return nil, unexpected("Server error", err)
	}

	return &LoginResult{Account: account, MatchedBy: matchedBy, Token: token}, nil
}

func (s *AccountService) lookup(ctx context.Context, identifier string) ([]models.Account, string, error) {
	if strings.Contains(identifier, "@") {
		a, err := s.repo.GetAccountByEmail(ctx, strings.ToLower(identifier))
		if errors.Is(err, store.ErrNotFound) {
			return nil, MatchedByEmail, nil
		}
		if err != nil {
			return nil, MatchedByEmail, err
		}
		return []models.Account{*a}, MatchedByEmail, nil
	}

	if isDigits(identifier) {
		number, err := strconv.ParseInt(identifier, 10, 64)
		if err != nil {
			// too large to be any account number
			return nil, MatchedByNumber, nil
		}
		accounts, err := s.repo.FindAccountsByNumber(ctx, number)
		return accounts, MatchedByNumber, err
	}

	accounts, err := s.repo.FindAccountsByShopName(ctx, identifier)
	return accounts, MatchedByShopName, err
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ForgotPassword issues a one-time reset code and mails it. The code is
// returned only when devReturnOTP is set outside production.
func (s *AccountService) ForgotPassword(ctx context.Context, email string, devReturnOTP bool) (string, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.ForgotPassword")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", validationError(CodeInvalidInput, "Email is required")
	}

	account, err := s.repo.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", newError(KindNotFound, CodeUserNotFound, "User not found")
	}
	if err != nil {
		return "", unexpected("Server error", err)
	}

	otp, err := generateOTP()
	if err != nil {
		return "", unexpected("Server error", err)
	}

	if err := s.repo.SetOTP(ctx, account.ID, otp, s.now().Add(s.otpTTL)); err != nil {
		return "", unexpected("Server error", err)
	}

	if err := s.mailer.SendOTP(ctx, account.Email, account.Name, otp, s.otpTTL); err != nil {
		s.logger.Error("Failed to send OTP email", zap.Int64("account_id", account.ID), zap.Error(err))
		return "", unexpected("Failed to send OTP email", err)
	}

	util.OTPIssuedTotal.Inc()
	s.logger.Info("OTP issued", zap.Int64("account_id", account.ID))

	if devReturnOTP && !s.production {
		return otp, nil
	}
	return "", nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// VerifyOTP checks a reset code, optionally replaces the password, and
// consumes the code. It reports whether the password changed.
func (s *AccountService) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (bool, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.VerifyOTP")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.OTP == "" {
		return false, validationError(CodeInvalidInput, "Email and OTP are required")
	}

	account, err := s.repo.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return false, newError(KindNotFound, CodeUserNotFound, "User not found")
	}
	if err != nil {
		return false, unexpected("Server error", err)
	}

	if account.OTP == nil || account.OTPExpires == nil {
		return false, validationError(CodeOTPNotRequested, "No OTP requested or already used")
	}
	if s.now().After(*account.OTPExpires) {
		return false, validationError(CodeOTPExpired, "OTP expired")
	}
	if subtle.ConstantTimeCompare([]byte(*account.OTP), []byte(strings.TrimSpace(req.OTP))) != 1 {
		return false, validationError(CodeInvalidOTP, "Invalid OTP")
	}

	var hash string
	if req.NewPassword != "" {
		if req.ConfirmPassword == "" {
			return false, validationError(CodeInvalidInput, "confirmPassword is required")
		}
		if req.NewPassword != req.ConfirmPassword {
			return false, validationError(CodePasswordMismatch, "Passwords do not match")
		}
		b, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
		if err != nil {
			return false, unexpected("Server error", err)
		}
		hash = string(b)
	}

	if err := s.repo.ClearOTP(ctx, account.ID, hash); err != nil {
		return false, unexpected("Server error", err)
	}

	s.logger.Info("OTP verified", zap.Int64("account_id", account.ID), zap.Bool("password_changed", hash != ""))
	return hash != "", nil
}

// ListCustomers returns every shop account
func (s *AccountService) ListCustomers(ctx context.Context) ([]models.Account, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.ListCustomers")
	defer span.End()

	customers, err := s.repo.ListAccountsByRole(ctx, models.RoleCustomer)
	if err != nil {
		return nil, unexpected("Error fetching customers", err)
	}
	if len(customers) == 0 {
		return nil, newError(KindNotFound, CodeNoCustomers, "No customers found")
	}
	return customers, nil
}

// ShopContact returns the account owning a shop, used for notifications
func (s *AccountService) ShopContact(ctx context.Context, shopID int64) (*models.Account, error) {
	account, err := s.repo.GetAccountByShopID(ctx, shopID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, CodeUserNotFound, "User not found")
	}
	if err != nil {
		return nil, unexpected("Server error", err)
	}
	return account, nil
}

// PurgeExpiredOTPs clears reset codes past their expiry
func (s *AccountService) PurgeExpiredOTPs(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeExpiredOTPs(ctx, s.now())
	if err != nil {
		return 0, unexpected("Failed to purge expired OTPs", err)
	}
	if n > 0 {
		util.OTPPurgedTotal.Add(float64(n))
		s.logger.Info("Expired OTPs purged", zap.Int64("count", n))
	}
	return n, nil
}
