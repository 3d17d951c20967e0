package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	config "github.com/charitychain/charitychain-api/config"
	middleware "github.com/charitychain/charitychain-api/middleware"
	models "github.com/charitychain/charitychain-api/models"
	policy "github.com/charitychain/charitychain-api/policy"
	store "github.com/charitychain/charitychain-api/store"
	utils "github.com/charitychain/charitychain-api/utils"
)

const (
	msgEmailTaken       = "User with this email already exists"
	msgInvalidCreds     = "Invalid credentials"
	msgPendingNGO       = "Your NGO account is pending verification. Please wait for admin approval."
	msgResetSent        = "If an account exists for that email, a reset code has been sent"
	msgInvalidResetCode = "Invalid or expired reset code"
	msgRequiredFields   = "Please provide all required fields"
	mailTimeout         = 20 * time.Second
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// createAccount hashes the password and inserts u. It reports false after
// writing the response when the account could not be created.
func createAccount(c *gin.Context, cfg *config.Config, u *models.User, password string) bool {
	ctx, cancel := reqCtx(c, writeTimeout)
	defer cancel()

	// --- Email must be unused ---
	if _, err := cfg.Store.FindUserByEmail(ctx, u.Email); err == nil {
		message(c, http.StatusBadRequest, msgEmailTaken)
		return false
	} else if !errors.Is(err, store.ErrNotFound) {
		serverError(c, cfg, "registration lookup failed", err)
		return false
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		serverError(c, cfg, "password hashing failed", err)
		return false
	}

	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Password = hash
	u.Verified = u.Role.DefaultVerified()
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := cfg.Store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost a race on email, or the registration number is taken.
			if u.RegistrationNumber != nil {
				message(c, http.StatusBadRequest, "User with this email or registration number already exists")
			} else {
				message(c, http.StatusBadRequest, msgEmailTaken)
			}
			return false
		}
		serverError(c, cfg, "create user failed", err)
		return false
	}
	return true
}

// ---------------- REGISTER (DONOR) ----------------
func Register(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name     string      `json:"name" binding:"required"`
			Email    string      `json:"email" binding:"required,email"`
			Password string      `json:"password" binding:"required,min=6"`
			Role     models.Role `json:"role"`
		}
		if !bindJSON(c, &input, msgRequiredFields) {
			return
		}
		if input.Role != "" && input.Role != models.RoleDonor {
			message(c, http.StatusBadRequest, "Only donor accounts can be registered here")
			return
		}

		user := &models.User{
			Name:  strings.TrimSpace(input.Name),
			Email: normalizeEmail(input.Email),
			Role:  models.RoleDonor,
		}
		if !createAccount(c, cfg, user, input.Password) {
			return
		}

		token, err := utils.IssueToken(cfg.JWTSecret, cfg.TokenTTL, user)
		if err != nil {
			serverError(c, cfg, "issue token failed", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "User registered successfully",
			"token":   token,
			"user":    user.Summary(),
		})
	}
}

// ---------------- REGISTER (NGO) ----------------
func RegisterNGO(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name               string `json:"name" binding:"required"`
			Email              string `json:"email" binding:"required,email"`
			Password           string `json:"password" binding:"required,min=6"`
			RegistrationNumber string `json:"registrationNumber" binding:"required"`
			ContactNumber      string `json:"contactNumber" binding:"required"`
			Website            string `json:"website"`
			Address            string `json:"address"`
			Description        string `json:"description" binding:"required"`
		}
		if !bindJSON(c, &input, msgRequiredFields) {
			return
		}

		user := &models.User{
			Name:               strings.TrimSpace(input.Name),
			Email:              normalizeEmail(input.Email),
			Role:               models.RoleNGO,
			RegistrationNumber: optional(input.RegistrationNumber),
			ContactNumber:      strings.TrimSpace(input.ContactNumber),
			Website:            strings.TrimSpace(input.Website),
			Address:            strings.TrimSpace(input.Address),
			Description:        strings.TrimSpace(input.Description),
		}
		if !createAccount(c, cfg, user, input.Password) {
			return
		}

		// No token: the account cannot sign in until an admin verifies it.
		c.JSON(http.StatusCreated, gin.H{
			"message": "NGO registration submitted for verification",
			"user":    user.Summary(),
		})
	}
}

// ---------------- LOGIN ----------------
func Login(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if !bindJSON(c, &input, "Please provide email and password") {
			return
		}

		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		user, err := cfg.Store.FindUserByEmail(ctx, normalizeEmail(input.Email))
		if errors.Is(err, store.ErrNotFound) {
			message(c, http.StatusBadRequest, msgInvalidCreds)
			return
		}
		if err != nil {
			serverError(c, cfg, "login lookup failed", err)
			return
		}
		if !utils.CheckPassword(user.Password, input.Password) {
			message(c, http.StatusBadRequest, msgInvalidCreds)
			return
		}
		if !policy.CanLogin(user) {
			message(c, http.StatusForbidden, msgPendingNGO)
			return
		}

		token, err := utils.IssueToken(cfg.JWTSecret, cfg.TokenTTL, user)
		if err != nil {
			serverError(c, cfg, "issue token failed", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Login successful",
			"token":   token,
			"user":    user.Profile(),
		})
	}
}

// ---------------- VERIFY TOKEN ----------------
func Verify(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c).Profile()})
	}
}

// ---------------- FORGOT PASSWORD ----------------
func ForgotPassword(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email string `json:"email" binding:"required,email"`
		}
		if !bindJSON(c, &input, "Please provide your email") {
			return
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		user, err := cfg.Store.FindUserByEmail(ctx, normalizeEmail(input.Email))
		if errors.Is(err, store.ErrNotFound) {
			// Same answer whether or not the account exists.
			message(c, http.StatusOK, msgResetSent)
			return
		}
		if err != nil {
			serverError(c, cfg, "forgot password lookup failed", err)
			return
		}

		otp, err := utils.GenerateOTP()
		if err != nil {
			serverError(c, cfg, "otp generation failed", err)
			return
		}
		hash, err := utils.HashPassword(otp)
		if err != nil {
			serverError(c, cfg, "otp hashing failed", err)
			return
		}
		if err := cfg.Store.SetUserResetOTP(ctx, user.ID, hash, time.Now().UTC().Add(utils.OTPTTL)); err != nil {
			serverError(c, cfg, "store otp failed", err)
			return
		}

		subject, body := utils.PasswordResetEmail(user.Name, otp)
		mailCtx, mailCancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
		defer mailCancel()
		if err := cfg.Mailer.Send(mailCtx, user.Email, user.Name, subject, body); err != nil {
			cfg.Logger.Error("password reset email failed", zap.String("user", user.ID.Hex()), zap.Error(err))
		}

		message(c, http.StatusOK, msgResetSent)
	}
}

// ---------------- RESET PASSWORD ----------------
func ResetPassword(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email       string `json:"email" binding:"required,email"`
			OTP         string `json:"otp" binding:"required,len=6,numeric"`
			NewPassword string `json:"newPassword" binding:"required,min=6"`
		}
		if !bindJSON(c, &input, "Please provide email, code and new password") {
			return
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		user, err := cfg.Store.FindUserByEmail(ctx, normalizeEmail(input.Email))
		if errors.Is(err, store.ErrNotFound) {
			message(c, http.StatusBadRequest, msgInvalidResetCode)
			return
		}
		if err != nil {
			serverError(c, cfg, "reset password lookup failed", err)
			return
		}
		if user.ResetOTP == "" || user.ResetOTPExpiry == nil || time.Now().After(*user.ResetOTPExpiry) {
			message(c, http.StatusBadRequest, msgInvalidResetCode)
			return
		}
		if !utils.CheckPassword(user.ResetOTP, input.OTP) {
			// --- Count the miss, the code dies after MaxOTPAttempts ---
			updated, err := cfg.Store.RecordResetOTPFailure(ctx, user.ID, utils.MaxOTPAttempts)
			if err != nil {
				serverError(c, cfg, "record reset attempt failed", err)
				return
			}
			if updated.ResetOTP == "" {
				cfg.Logger.Warn("reset code voided after repeated failures", zap.String("user", user.ID.Hex()))
			}
			message(c, http.StatusBadRequest, msgInvalidResetCode)
			return
		}

		hash, err := utils.HashPassword(input.NewPassword)
		if err != nil {
			serverError(c, cfg, "password hashing failed", err)
			return
		}
		if err := cfg.Store.SetUserPassword(ctx, user.ID, hash); err != nil {
			serverError(c, cfg, "reset password failed", err)
			return
		}

		message(c, http.StatusOK, "Password reset successful")
	}
}
