package middleware

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
	models "github.com/charitychain/charitychain-api/models"
	policy "github.com/charitychain/charitychain-api/policy"
	store "github.com/charitychain/charitychain-api/store"
	utils "github.com/charitychain/charitychain-api/utils"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "user_id"
	RoleKey   = "role"
	UserKey   = "user"
)

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

// AuthMiddleware resolves the bearer token to a user and stores it on the
// context. Every failure is a 401.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || token == header {
			abort(c, http.StatusUnauthorized, "No authentication token, access denied")
			return
		}

		claims, err := utils.ParseToken(cfg.JWTSecret, token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Token is not valid")
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.ID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Token is not valid")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := cfg.Store.FindUserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			abort(c, http.StatusUnauthorized, "User not found")
			return
		}
		if err != nil {
			cfg.Logger.Error("auth user lookup failed", zap.Error(err))
			abort(c, http.StatusInternalServerError, "Server error")
			return
		}

		c.Set(UserIDKey, user.ID.Hex())
		c.Set(RoleKey, string(user.Role))
		c.Set(UserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user AuthMiddleware attached, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// Require aborts with 403 and msg unless allow accepts the current user.
func Require(allow func(*models.User) bool, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allow(CurrentUser(c)) {
			abort(c, http.StatusForbidden, msg)
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return Require(policy.IsAdmin, "Access denied. Admin role required.")
}

// RequireVerifiedNGO gates campaign management. An NGO whose verification was
// revoked after its token was issued is refused here.
func RequireVerifiedNGO() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if !policy.IsNGO(u) {
			abort(c, http.StatusForbidden, "Access denied. NGO role required.")
			return
		}
		if !policy.CanManageCampaigns(u) {
			abort(c, http.StatusForbidden, "Your NGO account is pending verification. Please wait for admin approval.")
			return
		}
		c.Next()
	}
}
