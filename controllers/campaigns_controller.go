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
	msgCampaignNotFound = "Campaign not found"
	msgNotCampaignOwner = "Not authorized to update this campaign"
	maxImageSize        = 5 << 20
)

// campaignViews populates each campaign's owning NGO.
func campaignViews(ctx context.Context, cfg *config.Config, campaigns []models.Campaign) ([]models.CampaignView, error) {
	ids := make([]primitive.ObjectID, 0, len(campaigns))
	for _, cp := range campaigns {
		ids = append(ids, cp.NGO)
	}
	owners, err := cfg.Store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	views := make([]models.CampaignView, 0, len(campaigns))
	for i := range campaigns {
		views = append(views, campaigns[i].View(owners[campaigns[i].NGO], now))
	}
	return views, nil
}

func campaignView(ctx context.Context, cfg *config.Config, cp *models.Campaign) (models.CampaignView, error) {
	views, err := campaignViews(ctx, cfg, []models.Campaign{*cp})
	if err != nil {
		return models.CampaignView{}, err
	}
	return views[0], nil
}

// listETag derives a validator from every campaign and owner timestamp in the
// list and its length. The Last-Modified value is the newest of them.
func listETag(views []models.CampaignView) (string, time.Time) {
	latest := views[0]
	stamps := make([]time.Time, 0, 2*len(views))
	for _, v := range views {
		stamps = append(stamps, v.UpdatedAt, v.OwnerUpdatedAt())
		if v.LastModified().After(latest.LastModified()) {
			latest = v
		}
	}
	return utils.GenerateETag(latest.ID, len(views), stamps...), latest.LastModified()
}

// viewETag covers the campaign, its updates and the populated owner.
func viewETag(v models.CampaignView) string {
	return utils.GenerateETag(v.ID, len(v.Updates), v.UpdatedAt, v.OwnerUpdatedAt())
}

// notModified sets the caching headers and reports whether the client copy is
// current.
func notModified(c *gin.Context, etag string, modified time.Time) bool {
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	c.Header("ETag", etag)
	c.Header("Last-Modified", modified.UTC().Format(http.TimeFormat))
	return false
}

// loadOwnedCampaign fetches :id and checks the current user may edit it.
func loadOwnedCampaign(ctx context.Context, c *gin.Context, cfg *config.Config) (*models.Campaign, bool) {
	id, ok := paramID(c, msgCampaignNotFound)
	if !ok {
		return nil, false
	}
	campaign, err := cfg.Store.FindCampaignByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		message(c, http.StatusNotFound, msgCampaignNotFound)
		return nil, false
	}
	if err != nil {
		serverError(c, cfg, "load campaign failed", err)
		return nil, false
	}
	if !policy.CanEditCampaign(middleware.CurrentUser(c), campaign) {
		message(c, http.StatusForbidden, msgNotCampaignOwner)
		return nil, false
	}
	return campaign, true
}

// ---------------- LIST (PUBLIC) ----------------
func ListCampaigns(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		campaigns, err := cfg.Store.ListCampaigns(ctx, store.CampaignFilter{Status: models.CampaignActive})
		if err != nil {
			serverError(c, cfg, "list campaigns failed", err)
			return
		}
		if category := c.Query("category"); category != "" {
			filtered := campaigns[:0]
			for _, cp := range campaigns {
				if string(cp.Category) == category {
					filtered = append(filtered, cp)
				}
			}
			campaigns = filtered
		}
		if len(campaigns) == 0 {
			c.JSON(http.StatusOK, []models.CampaignView{})
			return
		}

		views, err := campaignViews(ctx, cfg, campaigns)
		if err != nil {
			serverError(c, cfg, "populate campaigns failed", err)
			return
		}

		etag, modified := listETag(views)
		if notModified(c, etag, modified) {
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

// ---------------- GET (PUBLIC) ----------------
func GetCampaign(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, msgCampaignNotFound)
		if !ok {
			return
		}

		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		campaign, err := cfg.Store.FindCampaignByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			message(c, http.StatusNotFound, msgCampaignNotFound)
			return
		}
		if err != nil {
			serverError(c, cfg, "get campaign failed", err)
			return
		}

		view, err := campaignView(ctx, cfg, campaign)
		if err != nil {
			serverError(c, cfg, "populate campaign failed", err)
			return
		}

		// --- Conditional GET ---
		if notModified(c, viewETag(view), view.LastModified()) {
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// ---------------- MY CAMPAIGNS (NGO) ----------------
func MyCampaigns(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		campaigns, err := cfg.Store.ListCampaigns(ctx, store.CampaignFilter{NGO: user.ID})
		if err != nil {
			serverError(c, cfg, "list own campaigns failed", err)
			return
		}
		now := time.Now()
		views := make([]models.CampaignView, 0, len(campaigns))
		for i := range campaigns {
			views = append(views, campaigns[i].View(user, now))
		}
		c.JSON(http.StatusOK, views)
	}
}

// ---------------- CREATE (NGO) ----------------
func CreateCampaign(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		var input struct {
			Title        string          `json:"title" binding:"required,max=200"`
			Description  string          `json:"description" binding:"required"`
			Category     models.Category `json:"category" binding:"required,category"`
			TargetAmount float64         `json:"targetAmount" binding:"required"`
			EndDate      string          `json:"endDate" binding:"required"`
		}
		if !bindJSON(c, &input, msgRequiredFields) {
			return
		}
		if input.TargetAmount < models.MinTargetAmount {
			message(c, http.StatusBadRequest, "Target amount must be at least $100")
			return
		}
		endDate, err := parseDate(input.EndDate)
		if err != nil {
			message(c, http.StatusBadRequest, "Invalid end date, use RFC3339 or YYYY-MM-DD")
			return
		}
		now := time.Now().UTC()
		if !endDate.After(now) {
			message(c, http.StatusBadRequest, "End date must be in the future")
			return
		}

		campaign := &models.Campaign{
			ID:           primitive.NewObjectID(),
			Title:        strings.TrimSpace(input.Title),
			Description:  strings.TrimSpace(input.Description),
			Category:     input.Category,
			TargetAmount: input.TargetAmount,
			NGO:          user.ID,
			Status:       models.CampaignActive,
			EndDate:      endDate,
			Updates:      []models.CampaignUpdate{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		if err := cfg.Store.CreateCampaign(ctx, campaign); err != nil {
			serverError(c, cfg, "create campaign failed", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":  "Campaign created successfully",
			"campaign": campaign.View(user, now),
		})
	}
}

// ---------------- UPDATE (OWNER) ----------------
func UpdateCampaign(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Title        *string          `json:"title" binding:"omitempty,min=1,max=200"`
			Description  *string          `json:"description" binding:"omitempty,min=1"`
			Category     *models.Category `json:"category" binding:"omitempty,category"`
			TargetAmount *float64         `json:"targetAmount"`
			EndDate      *string          `json:"endDate"`
		}
		if !bindJSON(c, &input, msgRequiredFields) {
			return
		}

		changes := store.CampaignChanges{
			Title:       input.Title,
			Description: input.Description,
			Category:    input.Category,
		}
		if input.TargetAmount != nil {
			if *input.TargetAmount < models.MinTargetAmount {
				message(c, http.StatusBadRequest, "Target amount must be at least $100")
				return
			}
			changes.TargetAmount = input.TargetAmount
		}
		if input.EndDate != nil {
			endDate, err := parseDate(*input.EndDate)
			if err != nil {
				message(c, http.StatusBadRequest, "Invalid end date, use RFC3339 or YYYY-MM-DD")
				return
			}
			changes.EndDate = &endDate
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		campaign, ok := loadOwnedCampaign(ctx, c, cfg)
		if !ok {
			return
		}

		if !changes.Empty() {
			updated, err := cfg.Store.UpdateCampaign(ctx, campaign.ID, changes)
			if err != nil {
				serverError(c, cfg, "update campaign failed", err)
				return
			}
			campaign = updated
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "Campaign updated successfully",
			"campaign": campaign.View(middleware.CurrentUser(c), time.Now()),
		})
	}
}

// ---------------- POST UPDATE (OWNER) ----------------
func PostCampaignUpdate(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Title   string `json:"title" binding:"required"`
			Content string `json:"content" binding:"required"`
		}
		if !bindJSON(c, &input, "Please provide title and content") {
			return
		}

		ctx, cancel := reqCtx(c, writeTimeout)
		defer cancel()

		campaign, ok := loadOwnedCampaign(ctx, c, cfg)
		if !ok {
			return
		}

		update := models.CampaignUpdate{
			ID:      primitive.NewObjectID(),
			Title:   strings.TrimSpace(input.Title),
			Content: strings.TrimSpace(input.Content),
			Date:    time.Now().UTC(),
		}
		updated, err := cfg.Store.AppendCampaignUpdate(ctx, campaign.ID, update)
		if err != nil {
			serverError(c, cfg, "append campaign update failed", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "Update posted successfully",
			"campaign": updated.View(middleware.CurrentUser(c), time.Now()),
		})
	}
}

// ---------------- LIST UPDATES (PUBLIC) ----------------
func ListCampaignUpdates(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, msgCampaignNotFound)
		if !ok {
			return
		}

		ctx, cancel := reqCtx(c, readTimeout)
		defer cancel()

		campaign, err := cfg.Store.FindCampaignByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			message(c, http.StatusNotFound, msgCampaignNotFound)
			return
		}
		if err != nil {
			serverError(c, cfg, "list campaign updates failed", err)
			return
		}

		updates := campaign.Updates
		if updates == nil {
			updates = []models.CampaignUpdate{}
		}
		c.JSON(http.StatusOK, updates)
	}
}

// ---------------- LIST DONATIONS (PUBLIC) ----------------
func ListCampaignDonations(cfg *config.Config) gin.HandlerFunc {
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

		donations, err := cfg.Store.ListDonations(ctx, store.DonationFilter{
			Campaign: campaign.ID,
			Status:   models.DonationCompleted,
		})
		if err != nil {
			serverError(c, cfg, "list campaign donations failed", err)
			return
		}
		views, err := donationViews(ctx, cfg, donations, primitive.NilObjectID)
		if err != nil {
			serverError(c, cfg, "populate donations failed", err)
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

// ---------------- UPLOAD IMAGE (OWNER) ----------------
func UploadCampaignImage(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := reqCtx(c, 90*time.Second)
		defer cancel()

		campaign, ok := loadOwnedCampaign(ctx, c, cfg)
		if !ok {
			return
		}

		// --- Read the multipart file ---
		fileHeader, err := c.FormFile("image")
		if err != nil {
			message(c, http.StatusBadRequest, "Please provide an image")
			return
		}
		if fileHeader.Size > maxImageSize {
			message(c, http.StatusBadRequest, "Image must be 5MB or smaller")
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			serverError(c, cfg, "open uploaded image failed", err)
			return
		}
		defer file.Close()

		url, err := cfg.Uploader.Upload(ctx, file, utils.CampaignImageFolder)
		if errors.Is(err, utils.ErrUploadsDisabled) {
			message(c, http.StatusInternalServerError, "Image uploads are not configured")
			return
		}
		if err != nil {
			serverError(c, cfg, "image upload failed", err)
			return
		}

		updated, err := cfg.Store.UpdateCampaign(ctx, campaign.ID, store.CampaignChanges{ImageURL: &url})
		if err != nil {
			serverError(c, cfg, "store campaign image failed", err)
			return
		}

		// --- Drop the replaced image, best effort ---
		if campaign.ImageURL != nil && *campaign.ImageURL != "" {
			if err := cfg.Uploader.Delete(ctx, *campaign.ImageURL); err != nil {
				cfg.Logger.Warn("old campaign image not deleted",
					zap.String("campaign", campaign.ID.Hex()), zap.Error(err))
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "Campaign image updated successfully",
			"campaign": updated.View(middleware.CurrentUser(c), time.Now()),
		})
	}
}
