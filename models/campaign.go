package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CampaignStatus string

// Only active campaigns accept donations. Nothing moves a campaign into
// completed or ended yet; the values are kept so stored documents decode.
const (
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignSuspended CampaignStatus = "suspended"
	CampaignEnded     CampaignStatus = "ended"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignActive, CampaignCompleted, CampaignSuspended, CampaignEnded:
		return true
	}
	return false
}

func (s CampaignStatus) AcceptsDonations() bool {
	return s == CampaignActive
}

type Category string

const (
	CategoryEducation      Category = "education"
	CategoryHealthcare     Category = "healthcare"
	CategoryEnvironment    Category = "environment"
	CategoryDisasterRelief Category = "disaster-relief"
	CategoryPoverty        Category = "poverty"
	CategoryOther          Category = "other"
)

var Categories = []Category{
	CategoryEducation,
	CategoryHealthcare,
	CategoryEnvironment,
	CategoryDisasterRelief,
	CategoryPoverty,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// MinTargetAmount is the smallest fundraising goal a campaign may set.
const MinTargetAmount = 100

type CampaignUpdate struct {
	ID      primitive.ObjectID `bson:"_id" json:"_id"`
	Title   string             `bson:"title" json:"title"`
	Content string             `bson:"content" json:"content"`
	Date    time.Time          `bson:"date" json:"date"`
}

type Campaign struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description" json:"description"`
	Category      Category           `bson:"category" json:"category"`
	TargetAmount  float64            `bson:"targetAmount" json:"targetAmount"`
	CurrentAmount float64            `bson:"currentAmount" json:"currentAmount"`
	DonorsCount   int                `bson:"donorsCount" json:"donorsCount"`
	NGO           primitive.ObjectID `bson:"ngo" json:"ngo"`
	Status        CampaignStatus     `bson:"status" json:"status"`
	EndDate       time.Time          `bson:"endDate" json:"endDate"`
	Updates       []CampaignUpdate   `bson:"updates" json:"updates"`
	ImageURL      *string            `bson:"imageUrl" json:"imageUrl"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (c *Campaign) HasEnded(now time.Time) bool {
	return now.After(c.EndDate)
}

// ProgressPercentage is currentAmount/targetAmount as a percentage, capped at 100.
func (c *Campaign) ProgressPercentage() float64 {
	if c.TargetAmount <= 0 {
		return 0
	}
	return math.Min(c.CurrentAmount/c.TargetAmount*100, 100)
}

// CampaignView is the API shape of a campaign: the stored fields, the owner
// summary when loaded, and the derived values.
type CampaignView struct {
	Campaign
	NGO                any     `json:"ngo"`
	HasEnded           bool    `json:"hasEnded"`
	ProgressPercentage float64 `json:"progressPercentage"`

	ownerUpdatedAt time.Time
}

// OwnerUpdatedAt is when the populated NGO last changed, zero if the owner
// was not found.
func (v CampaignView) OwnerUpdatedAt() time.Time { return v.ownerUpdatedAt }

// LastModified is the later of the campaign's and its owner's update times.
func (v CampaignView) LastModified() time.Time {
	if v.ownerUpdatedAt.After(v.UpdatedAt) {
		return v.ownerUpdatedAt
	}
	return v.UpdatedAt
}

// View renders the campaign. owner may be nil, in which case only the owner
// id is emitted.
func (c *Campaign) View(owner *User, now time.Time) CampaignView {
	v := CampaignView{
		Campaign:           *c,
		NGO:                c.NGO,
		HasEnded:           c.HasEnded(now),
		ProgressPercentage: c.ProgressPercentage(),
	}
	if v.Updates == nil {
		v.Updates = []CampaignUpdate{}
	}
	if owner != nil {
		v.NGO = owner.NGORef()
		v.ownerUpdatedAt = owner.UpdatedAt
	}
	return v
}
