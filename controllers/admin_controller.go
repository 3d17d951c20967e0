package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	config "github.com/charitychain/charitychain-api/config"
	ledger "github.com/charitychain/charitychain-api/ledger"
	middleware "github.com/charitychain/charitychain-api/middleware"
	models "github.com/charitychain/charitychain-api/models"
	policy "github.com/charitychain/charitychain-api/policy"
	store "github.com/charitychain/charitychain-api/store"
	utils "github.com/charitychain/charitychain-api/utils"
)

const (
	msgNGONotFound  = "NGO not found"
	msgUserNotFound = "User not found"
)

func ngoSummary(u *models.User) gin.H {
	return gin.H{"id": u.ID, "name": u.Name, "email": u.Email, "verified": u.Verified}
}

// ---------------- NGOS ----------------
func ListNGOs(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		filter := store.UserFilter{Role: models.RoleNGO}
		switch c.Query("verified") {
		case "true":
			v := true
			filter.Verified = &v
		case "false":
			v := false
			filter.Verified = &v
		}

		ngos, err := cfg.Store.ListUsers(ctx, filter)
		if err != nil {
			serverError(c, cfg, "list ngos failed", err)
			return
		}
		if ngos == nil {
			ngos = []models.User{}
		}
		c.JSON(http.StatusOK, ngos)
	}
}

// setNGOVerified drives the NGO verification state machine. Both directions
// are idempotent.
func setNGOVerified(cfg *config.Config, verified bool, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, msgNGONotFound)
		if !ok {
			return
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		ngo, err := cfg.Store.FindUserByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			message(c, http.StatusNotFound, msgNGONotFound)
			return
		}
		if err != nil {
			serverError(c, cfg, "load ngo failed", err)
			return
		}
		if !policy.IsNGO(ngo) {
			message(c, http.StatusBadRequest, "User is not an NGO")
			return
		}

		updated, err := cfg.Store.SetUserVerified(ctx, id, verified)
		if err != nil {
			serverError(c, cfg, "set ngo verification failed", err)
			return
		}

		cfg.Logger.Info("ngo verification changed",
			zap.String("ngo", id.Hex()),
			zap.Bool("verified", verified),
			zap.String("admin", c.GetString(middleware.UserIDKey)))

		if verified && !ngo.Verified {
			notifyVerified(cfg, updated)
		}

		c.JSON(http.StatusOK, gin.H{"message": msg, "ngo": ngoSummary(updated)})
	}
}

// notifyVerified emails the NGO in the background. Failures are only logged.
func notifyVerified(cfg *config.Config, ngo *models.User) {
	subject, body := utils.NGOVerifiedEmail(ngo.Name)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := cfg.Mailer.Send(ctx, ngo.Email, ngo.Name, subject, body); err != nil {
			cfg.Logger.Warn("verification email failed", zap.String("ngo", ngo.ID.Hex()), zap.Error(err))
		}
	}()
}

func VerifyNGO(cfg *config.Config) gin.HandlerFunc {
	return setNGOVerified(cfg, true, "NGO verified successfully")
}

func RejectNGO(cfg *config.Config) gin.HandlerFunc {
	return setNGOVerified(cfg, false, "NGO verification revoked")
}

// ---------------- CAMPAIGNS ----------------
func ListAllCampaigns(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		filter := store.CampaignFilter{}
		if s := models.CampaignStatus(c.Query("status")); s.Valid() {
			filter.Status = s
		}
		campaigns, err := cfg.Store.ListCampaigns(ctx, filter)
		if err != nil {
			serverError(c, cfg, "list all campaigns failed", err)
			return
		}
		views, err := campaignViews(ctx, cfg, campaigns)
		if err != nil {
			serverError(c, cfg, "populate campaigns failed", err)
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

// setCampaignStatus moves a campaign between active and suspended. Campaigns
// in any other state are left alone.
func setCampaignStatus(cfg *config.Config, to models.CampaignStatus, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, msgCampaignNotFound)
		if !ok {
			return
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		campaign, err := cfg.Store.FindCampaignByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			message(c, http.StatusNotFound, msgCampaignNotFound)
			return
		}
		if err != nil {
			serverError(c, cfg, "load campaign failed", err)
			return
		}
		if campaign.Status != models.CampaignActive && campaign.Status != models.CampaignSuspended {
			message(c, http.StatusBadRequest, "Campaign is "+string(campaign.Status)+" and cannot change status")
			return
		}

		if campaign.Status != to {
			campaign, err = cfg.Store.SetCampaignStatus(ctx, id, to)
			if err != nil {
				serverError(c, cfg, "set campaign status failed", err)
				return
			}
			cfg.Logger.Info("campaign status changed",
				zap.String("campaign", id.Hex()),
				zap.String("status", string(to)),
				zap.String("admin", c.GetString(middleware.UserIDKey)))
		}

		view, err := campaignView(ctx, cfg, campaign)
		if err != nil {
			serverError(c, cfg, "populate campaign failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, "campaign": view})
	}
}

func SuspendCampaign(cfg *config.Config) gin.HandlerFunc {
	return setCampaignStatus(cfg, models.CampaignSuspended, "Campaign suspended successfully")
}

func ActivateCampaign(cfg *config.Config) gin.HandlerFunc {
	return setCampaignStatus(cfg, models.CampaignActive, "Campaign activated successfully")
}

// ---------------- RECONCILE ----------------
func ReconcileCampaign(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, msgCampaignNotFound)
		if !ok {
			return
		}

		ctx, cancel := reqCtx(c, 30*time.Second)
		defer cancel()

		campaign, err := cfg.Ledger.Reconcile(ctx, id)
		if errors.Is(err, ledger.ErrCampaignNotFound) {
			message(c, http.StatusNotFound, msgCampaignNotFound)
			return
		}
		if err != nil {
			serverError(c, cfg, "reconcile campaign failed", err)
			return
		}

		view, err := campaignView(ctx, cfg, campaign)
		if err != nil {
			serverError(c, cfg, "populate campaign failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Campaign totals reconciled", "campaign": view})
	}
}

// ---------------- STATS ----------------
func AdminStats(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		var (
			stats  models.AdminStats
			totals store.Totals
		)
		verified, pending := true, false

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			totals, err = cfg.Store.DonationTotals(gctx, store.DonationFilter{Status: models.DonationCompleted})
			return err
		})
		g.Go(func() (err error) {
			stats.TotalCampaigns, err = cfg.Store.CountCampaigns(gctx, store.CampaignFilter{})
			return err
		})
		g.Go(func() (err error) {
			stats.ActiveCampaigns, err = cfg.Store.CountCampaigns(gctx, store.CampaignFilter{Status: models.CampaignActive})
			return err
		})
		g.Go(func() (err error) {
			stats.TotalNGOs, err = cfg.Store.CountUsers(gctx, store.UserFilter{Role: models.RoleNGO, Verified: &verified})
			return err
		})
		g.Go(func() (err error) {
			stats.PendingVerifications, err = cfg.Store.CountUsers(gctx, store.UserFilter{Role: models.RoleNGO, Verified: &pending})
			return err
		})
		if err := g.Wait(); err != nil {
			serverError(c, cfg, "admin stats failed", err)
			return
		}

		stats.TotalDonations = decimal.NewFromFloat(totals.Amount).Round(2).InexactFloat64()
		stats.TotalDonors = int64(totals.Donors)
		c.JSON(http.StatusOK, stats)
	}
}

// ---------------- USERS ----------------
func ListUsers(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		filter := store.UserFilter{}
		if r := models.Role(c.Query("role")); r.Valid() {
			filter.Role = r
		}
		users, err := cfg.Store.ListUsers(ctx, filter)
		if err != nil {
			serverError(c, cfg, "list users failed", err)
			return
		}
		if users == nil {
			users = []models.User{}
		}
		c.JSON(http.StatusOK, users)
	}
}

func DeleteUser(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, msgUserNotFound)
		if !ok {
			return
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		target, err := cfg.Store.FindUserByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			message(c, http.StatusNotFound, msgUserNotFound)
			return
		}
		if err != nil {
			serverError(c, cfg, "load user failed", err)
			return
		}
		if !policy.CanDeleteUser(middleware.CurrentUser(c), target) {
			message(c, http.StatusForbidden, "Cannot delete admin users")
			return
		}

		if err := cfg.Store.DeleteUser(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			serverError(c, cfg, "delete user failed", err)
			return
		}

		cfg.Logger.Info("user deleted",
			zap.String("user", id.Hex()),
			zap.String("admin", c.GetString(middleware.UserIDKey)))
		message(c, http.StatusOK, "User deleted successfully")
	}
}
