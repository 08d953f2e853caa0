package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dontcare/internal/auth"
	"dontcare/internal/cache"
	"dontcare/internal/config"
	"dontcare/internal/database"
	"dontcare/internal/errors"
	"dontcare/internal/logger"
	"dontcare/internal/mailer"
	"dontcare/internal/middleware"
	"dontcare/internal/otp"
)

// AuthHandler implements account and session endpoints
type AuthHandler struct {
	db        *database.DB
	jwt       *auth.JWTManager
	otp       *otp.Store
	mailer    mailer.Mailer
	cache     cache.Cacher
	rateLimit config.RateLimitConfig
}

// NewAuthHandler creates the account handler
func NewAuthHandler(db *database.DB, jwt *auth.JWTManager, otpStore *otp.Store, m mailer.Mailer, c cache.Cacher, rl config.RateLimitConfig) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt, otp: otpStore, mailer: m, cache: c, rateLimit: rl}
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type otpVerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type passwordResetRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
}

type profileUpdateRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// CheckEmail reports whether an email is available for signup
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "A valid email is required", err))
		return
	}

	exists, err := h.db.CheckEmailExists(c.Request.Context(), req.Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "email": req.Email, "available": !exists})
}

// RequestSignupOTP emails a verification code for a new account. Emails
// that are already registered are rejected up front.
func (h *AuthHandler) RequestSignupOTP(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "A valid email is required", err))
		return
	}
	ctx := c.Request.Context()

	exists, err := h.db.CheckEmailExists(ctx, req.Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if exists {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeEmailRegistered, "Email is already registered", nil))
		return
	}

	h.sendOTP(c, otp.PurposeSignup, req.Email)
}

// VerifySignupOTP checks a signup verification code
func (h *AuthHandler) VerifySignupOTP(c *gin.Context) {
	h.verifyOTP(c, otp.PurposeSignup)
}

// Signup creates the account once the email has a verified code
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Invalid signup request", err))
		return
	}
	ctx := c.Request.Context()

	verified, err := h.otp.IsVerified(ctx, otp.PurposeSignup, req.Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if !verified {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeOTPNotVerified, "Email verification required before signup", nil))
		return
	}

	exists, err := h.db.CheckEmailExists(ctx, req.Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if exists {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeEmailRegistered, "Email is already registered", nil))
		return
	}

	user, err := h.db.CreateUser(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if err := h.otp.Consume(ctx, otp.PurposeSignup, req.Email); err != nil {
		logger.WithError(err).Warn("Failed to consume signup OTP")
	}

	logger.WithField("email", user.Email).Info("User signed up")
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

// Login verifies credentials and issues an access/refresh token pair
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Email and password are required", err))
		return
	}
	ctx := c.Request.Context()

	user, err := h.db.GetUserByEmail(ctx, req.Email)
	if err == database.ErrUserNotFound {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidCredentials, "Invalid email or password", nil))
		return
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if err := database.ValidatePassword(req.Password, user.PasswordHash); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidCredentials, "Invalid email or password", nil))
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	refreshToken, err := h.jwt.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if _, err := h.db.CreateUserSession(ctx, user.ID, refreshToken, time.Now().Add(h.jwt.RefreshDuration())); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := h.db.UpdateUserLastLogin(ctx, user.ID); err != nil {
		logger.WithError(err).Warn("Failed to record last login")
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

// Refresh rotates the token pair from a live refresh session
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "refresh_token is required", err))
		return
	}
	ctx := c.Request.Context()

	if _, err := h.jwt.ValidateToken(req.RefreshToken, auth.TokenTypeRefresh); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeSessionExpired, "Invalid or expired refresh token", err))
		return
	}

	session, err := h.db.GetUserSessionByToken(ctx, req.RefreshToken)
	if err == database.ErrSessionNotFound {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeSessionExpired, "Session expired, log in again", nil))
		return
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	user, err := h.db.GetUserByID(ctx, session.UserID)
	if err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeSessionExpired, "Account no longer active", err))
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	refreshToken, err := h.jwt.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	// rotate: drop the old session, store the new one
	if err := h.db.DeleteUserSession(ctx, session.ID); err != nil {
		logger.WithError(err).Warn("Failed to delete rotated session")
	}
	if _, err := h.db.CreateUserSession(ctx, user.ID, refreshToken, time.Now().Add(h.jwt.RefreshDuration())); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

// Logout deletes the refresh session; repeating a logout succeeds
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "refresh_token is required", err))
		return
	}

	if err := h.db.DeleteSessionByToken(c.Request.Context(), req.RefreshToken); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RequestPasswordResetOTP emails a reset code to a registered address
func (h *AuthHandler) RequestPasswordResetOTP(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "A valid email is required", err))
		return
	}
	ctx := c.Request.Context()

	if _, err := h.db.GetUserByEmail(ctx, req.Email); err == database.ErrUserNotFound {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeEmailNotFound, "No account with this email", nil))
		return
	} else if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.sendOTP(c, otp.PurposePasswordReset, req.Email)
}

// VerifyPasswordResetOTP checks a password reset code
func (h *AuthHandler) VerifyPasswordResetOTP(c *gin.Context) {
	h.verifyOTP(c, otp.PurposePasswordReset)
}

// CompletePasswordReset sets the new password once the code is verified
func (h *AuthHandler) CompletePasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Invalid password reset request", err))
		return
	}
	ctx := c.Request.Context()

	verified, err := h.otp.IsVerified(ctx, otp.PurposePasswordReset, req.Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if !verified {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeOTPNotVerified, "Verification required before resetting the password", nil))
		return
	}

	if err := h.db.UpdateUserPasswordByEmail(ctx, req.Email, req.NewPassword); err != nil {
		if err == database.ErrUserNotFound {
			middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeEmailNotFound, "No account with this email", nil))
			return
		}
		middleware.AbortWithError(c, err)
		return
	}

	if err := h.otp.Consume(ctx, otp.PurposePasswordReset, req.Email); err != nil {
		logger.WithError(err).Warn("Failed to consume reset OTP")
	}

	// force re-login everywhere after a reset
	if user, err := h.db.GetUserByEmail(ctx, req.Email); err == nil {
		if err := h.db.DeleteUserSessions(ctx, user.ID); err != nil {
			logger.WithError(err).Warn("Failed to revoke sessions after reset")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ChangePassword updates the password for the logged-in user
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req passwordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Invalid password change request", err))
		return
	}
	ctx := c.Request.Context()

	user, err := h.db.GetUserByID(ctx, userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := database.ValidatePassword(req.CurrentPassword, user.PasswordHash); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidCredentials, "Current password is incorrect", nil))
		return
	}

	if err := h.db.UpdateUserPassword(ctx, userID, req.NewPassword); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetProfile returns the logged-in user
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.db.GetUserByID(c.Request.Context(), userID)
	if err == database.ErrUserNotFound {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeNotFound, "User not found", nil))
		return
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// UpdateProfile changes the display name
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "name is required", err))
		return
	}

	if err := h.db.UpdateUserName(c.Request.Context(), userID, req.Name); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteAccount withdraws the account and revokes its sessions. The
// current password must be supplied; a stolen access token alone is not
// enough to destroy an account.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "password is required", err))
		return
	}

	user, err := h.db.GetUserByID(ctx, userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := database.ValidatePassword(req.Password, user.PasswordHash); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidCredentials, "Password is incorrect", nil))
		return
	}

	if err := h.db.DeactivateUser(ctx, userID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := h.db.DeleteUserSessions(ctx, userID); err != nil {
		logger.WithError(err).Warn("Failed to revoke sessions on account deletion")
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) sendOTP(c *gin.Context, purpose, email string) {
	ctx := c.Request.Context()

	code, err := h.otp.Generate(ctx, purpose, email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if err := h.mailer.Send(email, mailer.OTPSubject(purpose), mailer.OTPBody(code)); err != nil {
		// a code nobody received must not stay verifiable
		if cerr := h.otp.Consume(ctx, purpose, email); cerr != nil {
			logger.WithError(cerr).Warn("Failed to discard undelivered OTP")
		}
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeEmailDelivery, "Failed to send verification email", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "email": email})
}

func (h *AuthHandler) verifyOTP(c *gin.Context, purpose string) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Email and 6-digit code are required", err))
		return
	}

	if err := h.otp.Verify(c.Request.Context(), purpose, req.Email, req.Code); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "verified": true})
}

// currentUserID reads the authenticated user ID set by the middleware
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(auth.ContextUserID)
	userID, err := uuid.Parse(raw)
	if err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeUnauthorized, "Authentication required", err))
		return uuid.UUID{}, false
	}
	return userID, true
}
