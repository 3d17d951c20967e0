package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/charitychain/charitychain-api/models"
)

func newUser(email string, role models.Role, created time.Time) *models.User {
	return &models.User{
		Name:      email,
		Email:     email,
		Role:      role,
		Verified:  role.DefaultVerified(),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemory_UserUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	require.NoError(t, m.CreateUser(ctx, newUser("a@b.org", models.RoleDonor, now)))
	assert.ErrorIs(t, m.CreateUser(ctx, newUser("a@b.org", models.RoleNGO, now)), ErrDuplicate)

	reg := "REG-1"
	ngo := newUser("ngo@b.org", models.RoleNGO, now)
	ngo.RegistrationNumber = &reg
	require.NoError(t, m.CreateUser(ctx, ngo))

	other := newUser("ngo2@b.org", models.RoleNGO, now)
	other.RegistrationNumber = &reg
	assert.ErrorIs(t, m.CreateUser(ctx, other), ErrDuplicate)

	// donors without a registration number never collide
	require.NoError(t, m.CreateUser(ctx, newUser("c@b.org", models.RoleDonor, now)))
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	u := newUser("a@b.org", models.RoleDonor, time.Now())
	require.NoError(t, m.CreateUser(ctx, u))

	got, err := m.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := m.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.org", again.Name)
}

func TestMemory_ListUsersNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()

	require.NoError(t, m.CreateUser(ctx, newUser("old@ngo.org", models.RoleNGO, base)))
	require.NoError(t, m.CreateUser(ctx, newUser("new@ngo.org", models.RoleNGO, base.Add(time.Minute))))
	require.NoError(t, m.CreateUser(ctx, newUser("d@b.org", models.RoleDonor, base.Add(2*time.Minute))))

	ngos, err := m.ListUsers(ctx, UserFilter{Role: models.RoleNGO})
	require.NoError(t, err)
	require.Len(t, ngos, 2)
	assert.Equal(t, "new@ngo.org", ngos[0].Email)
	assert.Equal(t, "old@ngo.org", ngos[1].Email)

	unverified := false
	n, err := m.CountUsers(ctx, UserFilter{Role: models.RoleNGO, Verified: &unverified})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMemory_ProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	a := newUser("a@b.org", models.RoleDonor, now)
	b := newUser("b@b.org", models.RoleDonor, now)
	require.NoError(t, m.CreateUser(ctx, a))
	require.NoError(t, m.CreateUser(ctx, b))

	taken := "b@b.org"
	_, err := m.UpdateUserProfile(ctx, a.ID, ProfileChanges{Email: &taken})
	assert.ErrorIs(t, err, ErrDuplicate)

	name := "Alice"
	u, err := m.UpdateUserProfile(ctx, a.ID, ProfileChanges{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "a@b.org", u.Email)

	require.NoError(t, m.SetUserResetOTP(ctx, a.ID, "hash", now.Add(10*time.Minute)))
	u, err = m.FindUserByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", u.ResetOTP)
	require.NotNil(t, u.ResetOTPExpiry)

	require.NoError(t, m.SetUserPassword(ctx, a.ID, "new-hash"))
	u, err = m.FindUserByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", u.Password)
	assert.Empty(t, u.ResetOTP)
	assert.Nil(t, u.ResetOTPExpiry)

	require.NoError(t, m.DeleteUser(ctx, a.ID))
	_, err = m.FindUserByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.DeleteUser(ctx, a.ID), ErrNotFound)
}

func TestMemory_ResetOTPFailuresVoidCode(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	u := newUser("a@b.org", models.RoleDonor, time.Now())
	require.NoError(t, m.CreateUser(ctx, u))
	require.NoError(t, m.SetUserResetOTP(ctx, u.ID, "hash", time.Now().Add(10*time.Minute)))

	for i := 1; i < 3; i++ {
		got, err := m.RecordResetOTPFailure(ctx, u.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, i, got.ResetOTPAttempts)
		assert.Equal(t, "hash", got.ResetOTP)
	}
	got, err := m.RecordResetOTPFailure(ctx, u.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, got.ResetOTP)
	assert.Nil(t, got.ResetOTPExpiry)

	// a new code starts from zero
	require.NoError(t, m.SetUserResetOTP(ctx, u.ID, "hash2", time.Now().Add(10*time.Minute)))
	got, err = m.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ResetOTPAttempts)

	_, err = m.RecordResetOTPFailure(ctx, primitive.NewObjectID(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_IncrementFundingRequiresActive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := &models.Campaign{
		Title:        "Wells",
		TargetAmount: 500,
		NGO:          primitive.NewObjectID(),
		Status:       models.CampaignActive,
		EndDate:      time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, m.CreateCampaign(ctx, c))

	require.NoError(t, m.IncrementFunding(ctx, c.ID, 25))
	require.NoError(t, m.IncrementFunding(ctx, c.ID, 5.5))

	got, err := m.FindCampaignByID(ctx, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 30.5, got.CurrentAmount, 1e-9)
	assert.Equal(t, 2, got.DonorsCount)
	assert.NotNil(t, got.Updates)

	_, err = m.SetCampaignStatus(ctx, c.ID, models.CampaignSuspended)
	require.NoError(t, err)
	assert.ErrorIs(t, m.IncrementFunding(ctx, c.ID, 10), ErrNotFound)
	assert.ErrorIs(t, m.IncrementFunding(ctx, primitive.NewObjectID(), 10), ErrNotFound)

	got, err = m.FindCampaignByID(ctx, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 30.5, got.CurrentAmount, 1e-9)
}

func TestMemory_CampaignUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := &models.Campaign{Title: "Books", Status: models.CampaignActive, TargetAmount: 100}
	require.NoError(t, m.CreateCampaign(ctx, c))

	title := "More books"
	url := "https://res.cloudinary.com/demo/image/upload/v1/campaigns/x.jpg"
	got, err := m.UpdateCampaign(ctx, c.ID, CampaignChanges{Title: &title, ImageURL: &url})
	require.NoError(t, err)
	assert.Equal(t, "More books", got.Title)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, url, *got.ImageURL)

	got, err = m.AppendCampaignUpdate(ctx, c.ID, models.CampaignUpdate{ID: primitive.NewObjectID(), Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Len(t, got.Updates, 1)

	byID, err := m.CampaignsByIDs(ctx, []primitive.ObjectID{c.ID, primitive.NewObjectID()})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
}

func TestMemory_DonationTotals(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	c1, c2 := primitive.NewObjectID(), primitive.NewObjectID()

	for _, d := range []*models.Donation{
		{Donor: alice, Campaign: c1, Amount: 10, Status: models.DonationCompleted},
		{Donor: alice, Campaign: c2, Amount: 15, Status: models.DonationCompleted},
		{Donor: bob, Campaign: c1, Amount: 5, Status: models.DonationCompleted},
		{Donor: bob, Campaign: c1, Amount: 100, Status: models.DonationFailed},
	} {
		require.NoError(t, m.CreateDonation(ctx, d))
	}

	all, err := m.DonationTotals(ctx, DonationFilter{Status: models.DonationCompleted})
	require.NoError(t, err)
	assert.InDelta(t, 30, all.Amount, 1e-9)
	assert.Equal(t, 3, all.Count)
	assert.Equal(t, 2, all.Donors)
	assert.Equal(t, 2, all.Campaigns)

	mine, err := m.DonationTotals(ctx, DonationFilter{Donor: alice, Status: models.DonationCompleted})
	require.NoError(t, err)
	assert.InDelta(t, 25, mine.Amount, 1e-9)
	assert.Equal(t, 2, mine.Campaigns)

	list, err := m.ListDonations(ctx, DonationFilter{Campaign: c1})
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.NoError(t, m.SetDonationStatus(ctx, list[0].ID, models.DonationRefunded))

	d, err := m.FindDonationByID(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DonationRefunded, d.Status)
}
