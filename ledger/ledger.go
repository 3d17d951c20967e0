// Package ledger records donations and keeps each campaign's running totals
// equal to the sum and count of its completed donations.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/charitychain/charitychain-api/models"
	"github.com/charitychain/charitychain-api/store"
)

var (
	ErrInvalidAmount     = errors.New("ledger: amount must be greater than 0")
	ErrBelowMinimum      = errors.New("ledger: amount below minimum donation")
	ErrCampaignNotFound  = errors.New("ledger: campaign not found")
	ErrCampaignNotActive = errors.New("ledger: campaign not accepting donations")
)

// compensationTimeout bounds the write that marks a donation failed after its
// campaign increment did not go through.
const compensationTimeout = 5 * time.Second

type Ledger struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
	token func() string
}

func New(s store.Store, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: s, log: log, now: time.Now, token: CorrelationToken}
}

type DonationRequest struct {
	Donor         primitive.ObjectID
	Campaign      primitive.ObjectID
	Amount        float64
	PaymentMethod models.PaymentMethod
	Message       string
	Anonymous     bool
}

// NormalizeAmount rounds a donation amount to cents and checks it against the
// minimum.
func NormalizeAmount(amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	d := decimal.NewFromFloat(amount).Round(2)
	if d.LessThan(decimal.NewFromInt(models.MinDonationAmount)) {
		return 0, ErrBelowMinimum
	}
	return d.InexactFloat64(), nil
}

// CorrelationToken returns "0x" followed by 64 random hex digits. The source
// is not cryptographic; the token only correlates a donation across systems.
func CorrelationToken() string {
	const hex = "0123456789abcdef"
	b := make([]byte, 66)
	b[0], b[1] = '0', 'x'
	for i := 2; i < len(b); i++ {
		b[i] = hex[rand.IntN(len(hex))]
	}
	return string(b)
}

// Donate records a completed donation and increments the campaign totals.
//
// On a transactional store both writes commit together. Otherwise the
// donation is inserted first and, if the increment fails, moved to failed so
// it no longer counts toward the campaign.
func (l *Ledger) Donate(ctx context.Context, req DonationRequest) (*models.Donation, error) {
	amount, err := NormalizeAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	campaign, err := l.store.FindCampaignByID(ctx, req.Campaign)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if !campaign.Status.AcceptsDonations() {
		return nil, ErrCampaignNotActive
	}

	method := req.PaymentMethod
	if method == "" {
		method = models.PaymentCard
	}
	now := l.now()
	token := l.token()
	donation := &models.Donation{
		ID:             primitive.NewObjectID(),
		Donor:          req.Donor,
		Campaign:       campaign.ID,
		Amount:         amount,
		Status:         models.DonationCompleted,
		BlockchainHash: &token,
		PaymentMethod:  method,
		Anonymous:      req.Anonymous,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Message != "" {
		msg := req.Message
		donation.Message = &msg
	}

	if l.store.Transactional() {
		err = l.store.WithinTx(ctx, func(ctx context.Context) error {
			if err := l.store.CreateDonation(ctx, donation); err != nil {
				return fmt.Errorf("insert donation: %w", err)
			}
			return l.increment(ctx, campaign.ID, amount)
		})
		if err != nil {
			return nil, err
		}
		return donation, nil
	}

	if err := l.store.CreateDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("insert donation: %w", err)
	}
	if err := l.increment(ctx, campaign.ID, amount); err != nil {
		l.compensate(ctx, donation, err)
		return nil, err
	}
	return donation, nil
}

func (l *Ledger) increment(ctx context.Context, id primitive.ObjectID, amount float64) error {
	err := l.store.IncrementFunding(ctx, id, amount)
	if errors.Is(err, store.ErrNotFound) {
		// Suspended between the status check and the write.
		return ErrCampaignNotActive
	}
	if err != nil {
		return fmt.Errorf("increment campaign totals: %w", err)
	}
	return nil
}

func (l *Ledger) compensate(ctx context.Context, d *models.Donation, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := l.store.SetDonationStatus(ctx, d.ID, models.DonationFailed); err != nil {
		l.log.Error("donation left completed without campaign increment",
			zap.String("donation", d.ID.Hex()),
			zap.String("campaign", d.Campaign.Hex()),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	d.Status = models.DonationFailed
	l.log.Warn("donation marked failed after campaign increment error",
		zap.String("donation", d.ID.Hex()),
		zap.String("campaign", d.Campaign.Hex()),
		zap.Error(cause))
}

// Reconcile recomputes a campaign's totals from its completed donations.
func (l *Ledger) Reconcile(ctx context.Context, campaignID primitive.ObjectID) (*models.Campaign, error) {
	if _, err := l.store.FindCampaignByID(ctx, campaignID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}

	totals, err := l.store.DonationTotals(ctx, store.DonationFilter{
		Campaign: campaignID,
		Status:   models.DonationCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("sum donations: %w", err)
	}
	amount := models.RoundCents(totals.Amount)

	campaign, err := l.store.SetFunding(ctx, campaignID, amount, totals.Count)
	if err != nil {
		return nil, fmt.Errorf("store campaign totals: %w", err)
	}
	l.log.Info("campaign reconciled",
		zap.String("campaign", campaignID.Hex()),
		zap.Float64("currentAmount", amount),
		zap.Int("donorsCount", totals.Count))
	return campaign, nil
}
