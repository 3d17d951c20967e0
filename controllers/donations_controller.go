package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/charitychain/charitychain-api/config"
	ledger "github.com/charitychain/charitychain-api/ledger"
	middleware "github.com/charitychain/charitychain-api/middleware"
	models "github.com/charitychain/charitychain-api/models"
	policy "github.com/charitychain/charitychain-api/policy"
	store "github.com/charitychain/charitychain-api/store"
)

const msgDonationNotFound = "Donation not found"

// donationViews populates donors, campaigns and campaign owners. viewer sees
// their own email and their own anonymous donations unmasked.
func donationViews(ctx context.Context, cfg *config.Config, donations []models.Donation, viewer primitive.ObjectID) ([]models.DonationView, error) {
	donorIDs := make([]primitive.ObjectID, 0, len(donations))
	campaignIDs := make([]primitive.ObjectID, 0, len(donations))
	for _, d := range donations {
		donorIDs = append(donorIDs, d.Donor)
		campaignIDs = append(campaignIDs, d.Campaign)
	}

	campaigns, err := cfg.Store.CampaignsByIDs(ctx, campaignIDs)
	if err != nil {
		return nil, err
	}
	for _, cp := range campaigns {
		donorIDs = append(donorIDs, cp.NGO)
	}
	users, err := cfg.Store.UsersByIDs(ctx, donorIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.DonationView, 0, len(donations))
	for i := range donations {
		d := &donations[i]
		refs := models.DonationRefs{
			Donor:     users[d.Donor],
			ShowEmail: !viewer.IsZero() && d.Donor == viewer,
		}
		if cp := campaigns[d.Campaign]; cp != nil {
			refs.Campaign = cp
			refs.CampaignNGO = users[cp.NGO]
		}
		views = append(views, d.View(refs))
	}
	return views, nil
}

// ---------------- CREATE ----------------
func CreateDonation(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		var input struct {
			CampaignID    string               `json:"campaignId" binding:"required,objectid"`
			Amount        *float64             `json:"amount" binding:"required"`
			PaymentMethod models.PaymentMethod `json:"paymentMethod" binding:"omitempty,paymentmethod"`
			Message       string               `json:"message" binding:"max=500"`
			Anonymous     bool                 `json:"anonymous"`
		}
		if !bindJSON(c, &input, "Please provide campaign and amount") {
			return
		}
		campaignID, _ := primitive.ObjectIDFromHex(input.CampaignID)

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		// --- Record through the ledger ---
		donation, err := cfg.Ledger.Donate(ctx, ledger.DonationRequest{
			Donor:         user.ID,
			Campaign:      campaignID,
			Amount:        *input.Amount,
			PaymentMethod: input.PaymentMethod,
			Message:       input.Message,
			Anonymous:     input.Anonymous,
		})
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			message(c, http.StatusBadRequest, "Amount must be greater than 0")
			return
		case errors.Is(err, ledger.ErrBelowMinimum):
			message(c, http.StatusBadRequest, "Minimum donation amount is 1")
			return
		case errors.Is(err, ledger.ErrCampaignNotFound):
			message(c, http.StatusNotFound, msgCampaignNotFound)
			return
		case errors.Is(err, ledger.ErrCampaignNotActive):
			message(c, http.StatusBadRequest, "This campaign is not accepting donations")
			return
		case err != nil:
			serverError(c, cfg, "donation failed", err)
			return
		}

		views, err := donationViews(ctx, cfg, []models.Donation{*donation}, user.ID)
		if err != nil {
			serverError(c, cfg, "populate donation failed", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":  "Donation successful",
			"donation": views[0],
		})
	}
}

// ---------------- MY DONATIONS ----------------
func MyDonations(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		donations, err := cfg.Store.ListDonations(ctx, store.DonationFilter{Donor: user.ID})
		if err != nil {
			serverError(c, cfg, "list own donations failed", err)
			return
		}
		views, err := donationViews(ctx, cfg, donations, user.ID)
		if err != nil {
			serverError(c, cfg, "populate donations failed", err)
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

// ---------------- STATS ----------------
func DonationStats(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		totals, err := cfg.Store.DonationTotals(ctx, store.DonationFilter{
			Donor:  user.ID,
			Status: models.DonationCompleted,
		})
		if err != nil {
			serverError(c, cfg, "donation stats failed", err)
			return
		}

		total := decimal.NewFromFloat(totals.Amount).Round(2)
		c.JSON(http.StatusOK, models.DonorStats{
			TotalDonated:       total.InexactFloat64(),
			CampaignsSupported: totals.Campaigns,
			ImpactScore:        total.Div(decimal.NewFromInt(models.ImpactPointValue)).Floor().IntPart(),
			TotalDonations:     totals.Count,
		})
	}
}

// ---------------- GET ----------------
func GetDonation(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		id, ok := paramID(c, msgDonationNotFound)
		if !ok {
			return
		}

		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		donation, err := cfg.Store.FindDonationByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			message(c, http.StatusNotFound, msgDonationNotFound)
			return
		}
		if err != nil {
			serverError(c, cfg, "get donation failed", err)
			return
		}

		// --- Donor or owning NGO only ---
		campaign, err := cfg.Store.FindCampaignByID(ctx, donation.Campaign)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			serverError(c, cfg, "load donation campaign failed", err)
			return
		}
		if !policy.CanViewDonation(user, donation, campaign) {
			message(c, http.StatusForbidden, "Access denied")
			return
		}

		views, err := donationViews(ctx, cfg, []models.Donation{*donation}, user.ID)
		if err != nil {
			serverError(c, cfg, "populate donation failed", err)
			return
		}
		c.JSON(http.StatusOK, views[0])
	}
}
