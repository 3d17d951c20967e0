package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
	DonationRefunded  DonationStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "card"
	PaymentCrypto       PaymentMethod = "crypto"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentOther        PaymentMethod = "other"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCard, PaymentCrypto, PaymentBankTransfer, PaymentOther:
		return true
	}
	return false
}

// MinDonationAmount is the smallest accepted contribution.
const MinDonationAmount = 1

// RoundCents rounds a money value to two decimal places. Running totals and
// reconciled totals both pass through it so they compare equal.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

type Donation struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Donor    primitive.ObjectID `bson:"donor" json:"donor"`
	Campaign primitive.ObjectID `bson:"campaign" json:"campaign"`
	Amount   float64            `bson:"amount" json:"amount"`
	Status   DonationStatus     `bson:"status" json:"status"`
	// BlockchainHash is an opaque correlation token generated when the
	// donation is recorded. It is random, not a hash of anything, and proves
	// nothing. The field name is kept for client compatibility.
	BlockchainHash *string       `bson:"blockchainHash" json:"blockchainHash"`
	TransactionID  *string       `bson:"transactionId" json:"transactionId"`
	PaymentMethod  PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	Message        *string       `bson:"message" json:"message"`
	Anonymous      bool          `bson:"anonymous" json:"anonymous"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt" json:"updatedAt"`
}

func (d *Donation) IsBlockchainVerified() bool {
	return d.BlockchainHash != nil && *d.BlockchainHash != ""
}

type DonorRef struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email,omitempty"`
}

type CampaignRef struct {
	ID          primitive.ObjectID `json:"_id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Category    Category           `json:"category,omitempty"`
	NGO         any                `json:"ngo"`
}

// DonationView is the API shape of a donation with donor and campaign
// populated when available.
type DonationView struct {
	Donation
	Donor                any  `json:"donor"`
	Campaign             any  `json:"campaign"`
	IsBlockchainVerified bool `json:"isBlockchainVerified"`
}

// DonationRefs carries what View needs to populate references. Any field may
// be nil; the raw id is emitted in its place.
type DonationRefs struct {
	Donor       *User
	Campaign    *Campaign
	CampaignNGO *User
	// ShowEmail includes the donor email, for views seen by the donor.
	ShowEmail bool
}

func (d *Donation) View(refs DonationRefs) DonationView {
	v := DonationView{
		Donation:             *d,
		Donor:                d.Donor,
		Campaign:             d.Campaign,
		IsBlockchainVerified: d.IsBlockchainVerified(),
	}
	switch {
	case d.Anonymous && !refs.ShowEmail:
		v.Donor = map[string]string{"name": "Anonymous"}
	case refs.Donor != nil:
		ref := DonorRef{ID: refs.Donor.ID, Name: refs.Donor.Name}
		if refs.ShowEmail {
			ref.Email = refs.Donor.Email
		}
		v.Donor = ref
	}
	if refs.Campaign != nil {
		ref := CampaignRef{
			ID:          refs.Campaign.ID,
			Title:       refs.Campaign.Title,
			Description: refs.Campaign.Description,
			Category:    refs.Campaign.Category,
			NGO:         refs.Campaign.NGO,
		}
		if refs.CampaignNGO != nil {
			ref.NGO = DonorRef{ID: refs.CampaignNGO.ID, Name: refs.CampaignNGO.Name}
		}
		v.Campaign = ref
	}
	return v
}
