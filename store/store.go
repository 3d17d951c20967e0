// Package store persists users, campaigns and donations.
//
// Two implementations are provided: Mongo, backed by the official MongoDB
// driver, and Memory, a process-local store used by tests and by local runs
// with DB_DRIVER=memory.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/charitychain/charitychain-api/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// UserFilter selects users. Zero fields match anything.
type UserFilter struct {
	Role     models.Role
	Verified *bool
}

type CampaignFilter struct {
	Status models.CampaignStatus
	NGO    primitive.ObjectID
}

type DonationFilter struct {
	Donor    primitive.ObjectID
	Campaign primitive.ObjectID
	Status   models.DonationStatus
}

// ProfileChanges holds the editable profile fields. Nil fields are left alone.
type ProfileChanges struct {
	Name          *string
	Email         *string
	ContactNumber *string
	Website       *string
	Address       *string
	Description   *string
}

func (p ProfileChanges) Empty() bool {
	return p.Name == nil && p.Email == nil && p.ContactNumber == nil &&
		p.Website == nil && p.Address == nil && p.Description == nil
}

// CampaignChanges holds the owner-editable campaign fields. Nil fields are
// left alone.
type CampaignChanges struct {
	Title        *string
	Description  *string
	Category     *models.Category
	TargetAmount *float64
	EndDate      *time.Time
	ImageURL     *string
}

func (c CampaignChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Category == nil &&
		c.TargetAmount == nil && c.EndDate == nil && c.ImageURL == nil
}

// Totals aggregates a set of donations.
type Totals struct {
	Amount    float64
	Count     int
	Donors    int
	Campaigns int
}

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error)
	// ListUsers returns matching users, newest first.
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)
	CountUsers(ctx context.Context, f UserFilter) (int64, error)
	SetUserVerified(ctx context.Context, id primitive.ObjectID, verified bool) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id primitive.ObjectID, ch ProfileChanges) (*models.User, error)
	SetUserPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	// SetUserResetOTP stores a hashed reset code. An empty hash clears it.
	SetUserResetOTP(ctx context.Context, id primitive.ObjectID, hash string, expiry time.Time) error
	// RecordResetOTPFailure counts a wrong reset code. Once maxAttempts is
	// reached the code is cleared. It returns the updated user.
	RecordResetOTPFailure(ctx context.Context, id primitive.ObjectID, maxAttempts int) (*models.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
}

type Campaigns interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	FindCampaignByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	CampaignsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Campaign, error)
	// ListCampaigns returns matching campaigns, newest first.
	ListCampaigns(ctx context.Context, f CampaignFilter) ([]models.Campaign, error)
	CountCampaigns(ctx context.Context, f CampaignFilter) (int64, error)
	UpdateCampaign(ctx context.Context, id primitive.ObjectID, ch CampaignChanges) (*models.Campaign, error)
	AppendCampaignUpdate(ctx context.Context, id primitive.ObjectID, up models.CampaignUpdate) (*models.Campaign, error)
	SetCampaignStatus(ctx context.Context, id primitive.ObjectID, status models.CampaignStatus) (*models.Campaign, error)
	// IncrementFunding atomically adds amount to currentAmount and one to
	// donorsCount of an active campaign. It returns ErrNotFound when no
	// active campaign has the id.
	IncrementFunding(ctx context.Context, id primitive.ObjectID, amount float64) error
	// SetFunding overwrites the aggregates, for reconciliation.
	SetFunding(ctx context.Context, id primitive.ObjectID, amount float64, donors int) (*models.Campaign, error)
}

type Donations interface {
	CreateDonation(ctx context.Context, d *models.Donation) error
	FindDonationByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error)
	// ListDonations returns matching donations, newest first.
	ListDonations(ctx context.Context, f DonationFilter) ([]models.Donation, error)
	SetDonationStatus(ctx context.Context, id primitive.ObjectID, status models.DonationStatus) error
	DonationTotals(ctx context.Context, f DonationFilter) (Totals, error)
}

// Store is the full persistence surface.
type Store interface {
	Users
	Campaigns
	Donations

	// WithinTx runs fn in a transaction when Transactional reports true and
	// runs it directly otherwise. fn must use the context it is given.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Transactional() bool
}

var (
	_ Store = (*Mongo)(nil)
	_ Store = (*Memory)(nil)
)
