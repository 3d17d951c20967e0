package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		name            string
		current, target float64
		want            float64
	}{
		{"partial", 50, 500, 10},
		{"exact", 500, 500, 100},
		{"capped", 900, 500, 100},
		{"zero target", 10, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Campaign{CurrentAmount: tc.current, TargetAmount: tc.target}
			assert.InDelta(t, tc.want, c.ProgressPercentage(), 1e-9)
		})
	}
}

func TestCampaignView(t *testing.T) {
	now := time.Now()
	owner := &User{ID: primitive.NewObjectID(), Name: "Water NGO", Email: "w@ngo.org", Verified: true}
	c := &Campaign{ID: primitive.NewObjectID(), NGO: owner.ID, EndDate: now.Add(-time.Hour), TargetAmount: 100, CurrentAmount: 25}

	v := c.View(nil, now)
	assert.Equal(t, owner.ID, v.NGO)
	assert.True(t, v.HasEnded)
	assert.NotNil(t, v.Updates)
	assert.InDelta(t, 25, v.ProgressPercentage, 1e-9)

	v = c.View(owner, now)
	ref, ok := v.NGO.(*NGORef)
	require.True(t, ok)
	assert.Equal(t, "Water NGO", ref.Name)
	assert.True(t, ref.Verified)
}

func TestDonationView(t *testing.T) {
	donor := &User{ID: primitive.NewObjectID(), Name: "Alice", Email: "a@b.org"}
	hash := "0xabc"
	d := &Donation{ID: primitive.NewObjectID(), Donor: donor.ID, Amount: 10, BlockchainHash: &hash}

	v := d.View(DonationRefs{Donor: donor})
	assert.Equal(t, DonorRef{ID: donor.ID, Name: "Alice"}, v.Donor)
	assert.True(t, v.IsBlockchainVerified)

	v = d.View(DonationRefs{Donor: donor, ShowEmail: true})
	assert.Equal(t, DonorRef{ID: donor.ID, Name: "Alice", Email: "a@b.org"}, v.Donor)

	d.Anonymous = true
	v = d.View(DonationRefs{Donor: donor})
	assert.Equal(t, map[string]string{"name": "Anonymous"}, v.Donor)

	// the donor still sees themselves
	v = d.View(DonationRefs{Donor: donor, ShowEmail: true})
	assert.IsType(t, DonorRef{}, v.Donor)

	d.BlockchainHash = nil
	assert.False(t, d.View(DonationRefs{}).IsBlockchainVerified)
}

func TestEnums(t *testing.T) {
	assert.True(t, RoleNGO.Valid())
	assert.False(t, Role("root").Valid())
	assert.False(t, RoleNGO.DefaultVerified())
	assert.True(t, RoleDonor.DefaultVerified())

	assert.True(t, CategoryDisasterRelief.Valid())
	assert.False(t, Category("sports").Valid())

	assert.True(t, CampaignActive.AcceptsDonations())
	assert.False(t, CampaignSuspended.AcceptsDonations())
	assert.False(t, CampaignStatus("paused").Valid())

	assert.True(t, PaymentBankTransfer.Valid())
	assert.False(t, PaymentMethod("cash").Valid())
}

func TestUserProfile(t *testing.T) {
	reg := "REG-42"
	u := &User{ID: primitive.NewObjectID(), Name: "NGO", Role: RoleNGO, RegistrationNumber: &reg, Website: "https://ngo.org"}
	p := u.Profile()
	assert.Equal(t, "REG-42", p.RegistrationNumber)
	assert.Equal(t, "https://ngo.org", p.Website)
	assert.Equal(t, u.Summary(), p.UserSummary)
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, 3.3, RoundCents(1.1+2.2))
	assert.Equal(t, 10.01, RoundCents(10.005))
	assert.Equal(t, 25.0, RoundCents(25))
}
