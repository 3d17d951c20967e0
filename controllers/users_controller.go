package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	config "github.com/charitychain/charitychain-api/config"
	middleware "github.com/charitychain/charitychain-api/middleware"
	models "github.com/charitychain/charitychain-api/models"
	store "github.com/charitychain/charitychain-api/store"
	utils "github.com/charitychain/charitychain-api/utils"
)

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// ---------------- PROFILE ----------------
func GetProfile(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c).Profile()})
	}
}

func UpdateProfile(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		var input struct {
			Name          *string `json:"name" binding:"omitempty,min=1"`
			Email         *string `json:"email" binding:"omitempty,email"`
			ContactNumber *string `json:"contactNumber"`
			Website       *string `json:"website"`
			Address       *string `json:"address"`
			Description   *string `json:"description"`
		}
		if !bindJSON(c, &input, msgRequiredFields) {
			return
		}

		changes := store.ProfileChanges{
			Name:          trimmed(input.Name),
			ContactNumber: trimmed(input.ContactNumber),
			Website:       trimmed(input.Website),
			Address:       trimmed(input.Address),
			Description:   trimmed(input.Description),
		}
		if input.Email != nil {
			if email := normalizeEmail(*input.Email); email != user.Email {
				changes.Email = &email
			}
		}
		if changes.Empty() {
			c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user.Profile()})
			return
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		updated, err := cfg.Store.UpdateUserProfile(ctx, user.ID, changes)
		if errors.Is(err, store.ErrDuplicate) {
			message(c, http.StatusBadRequest, msgEmailTaken)
			return
		}
		if err != nil {
			serverError(c, cfg, "update profile failed", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Profile updated successfully",
			"user":    updated.Profile(),
		})
	}
}

// ---------------- CHANGE PASSWORD ----------------
func ChangePassword(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		var input struct {
			CurrentPassword string `json:"currentPassword" binding:"required"`
			NewPassword     string `json:"newPassword" binding:"required,min=6"`
		}
		if !bindJSON(c, &input, "Please provide current and new password") {
			return
		}
		if !utils.CheckPassword(user.Password, input.CurrentPassword) {
			message(c, http.StatusBadRequest, "Current password is incorrect")
			return
		}

		hash, err := utils.HashPassword(input.NewPassword)
		if err != nil {
			serverError(c, cfg, "password hashing failed", err)
			return
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		if err := cfg.Store.SetUserPassword(ctx, user.ID, hash); err != nil {
			serverError(c, cfg, "change password failed", err)
			return
		}
		message(c, http.StatusOK, "Password changed successfully")
	}
}

// ---------------- NGO DASHBOARD ----------------
func NGOStats(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		campaigns, err := cfg.Store.ListCampaigns(ctx, store.CampaignFilter{NGO: user.ID})
		if err != nil {
			serverError(c, cfg, "ngo stats failed", err)
			return
		}

		// Campaign totals already equal the sum of their completed donations.
		raised := decimal.Zero
		stats := models.NGOStats{TotalCampaigns: len(campaigns)}
		for _, cp := range campaigns {
			raised = raised.Add(decimal.NewFromFloat(cp.CurrentAmount))
			stats.TotalDonors += cp.DonorsCount
			if cp.Status == models.CampaignActive {
				stats.ActiveCampaigns++
			}
		}
		stats.TotalRaised = raised.Round(2).InexactFloat64()

		c.JSON(http.StatusOK, stats)
	}
}
