package ledger

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/charitychain/charitychain-api/models"
	"github.com/charitychain/charitychain-api/store"
)

func seedCampaign(t *testing.T, s store.Store, status models.CampaignStatus, current float64, donors int) *models.Campaign {
	t.Helper()
	now := time.Now()
	c := &models.Campaign{
		Title:         "Clean water",
		Description:   "Wells for three villages",
		Category:      models.CategoryHealthcare,
		TargetAmount:  500,
		CurrentAmount: current,
		DonorsCount:   donors,
		NGO:           primitive.NewObjectID(),
		Status:        status,
		EndDate:       now.Add(30 * 24 * time.Hour),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateCampaign(context.Background(), c))
	return c
}

func completedSum(t *testing.T, s store.Store, campaign primitive.ObjectID) store.Totals {
	t.Helper()
	totals, err := s.DonationTotals(context.Background(), store.DonationFilter{
		Campaign: campaign,
		Status:   models.DonationCompleted,
	})
	require.NoError(t, err)
	return totals
}

func TestDonate_IncrementsCampaign(t *testing.T) {
	s := store.NewMemory()
	l := New(s, nil)
	c := seedCampaign(t, s, models.CampaignActive, 120, 3)
	donor := primitive.NewObjectID()

	d, err := l.Donate(context.Background(), DonationRequest{
		Donor:     donor,
		Campaign:  c.ID,
		Amount:    50,
		Message:   "keep going",
		Anonymous: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DonationCompleted, d.Status)
	assert.Equal(t, models.PaymentCard, d.PaymentMethod)
	assert.Equal(t, 50.0, d.Amount)
	assert.True(t, d.Anonymous)
	require.NotNil(t, d.Message)
	assert.Equal(t, "keep going", *d.Message)
	assert.True(t, d.IsBlockchainVerified())

	got, err := s.FindCampaignByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 170.0, got.CurrentAmount)
	assert.Equal(t, 4, got.DonorsCount)

	stored, err := s.FindDonationByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, donor, stored.Donor)
}

func TestDonate_RejectsBadAmounts(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		want   error
	}{
		{"zero", 0, ErrInvalidAmount},
		{"negative", -25, ErrInvalidAmount},
		{"below minimum", 0.5, ErrBelowMinimum},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := store.NewMemory()
			l := New(s, nil)
			c := seedCampaign(t, s, models.CampaignActive, 0, 0)

			_, err := l.Donate(context.Background(), DonationRequest{
				Donor:    primitive.NewObjectID(),
				Campaign: c.ID,
				Amount:   tc.amount,
			})
			assert.ErrorIs(t, err, tc.want)

			all, err := s.ListDonations(context.Background(), store.DonationFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestDonate_InactiveCampaignUnchanged(t *testing.T) {
	for _, status := range []models.CampaignStatus{
		models.CampaignCompleted,
		models.CampaignSuspended,
		models.CampaignEnded,
	} {
		t.Run(string(status), func(t *testing.T) {
			s := store.NewMemory()
			l := New(s, nil)
			c := seedCampaign(t, s, status, 75, 2)

			_, err := l.Donate(context.Background(), DonationRequest{
				Donor:    primitive.NewObjectID(),
				Campaign: c.ID,
				Amount:   20,
			})
			assert.ErrorIs(t, err, ErrCampaignNotActive)

			got, err := s.FindCampaignByID(context.Background(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, 75.0, got.CurrentAmount)
			assert.Equal(t, 2, got.DonorsCount)

			all, err := s.ListDonations(context.Background(), store.DonationFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestDonate_UnknownCampaign(t *testing.T) {
	l := New(store.NewMemory(), nil)
	_, err := l.Donate(context.Background(), DonationRequest{
		Donor:    primitive.NewObjectID(),
		Campaign: primitive.NewObjectID(),
		Amount:   10,
	})
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestDonate_ConcurrentDonationsAreNotLost(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		donors = 64
		amount = 15.0
	)
	s := store.NewMemory()
	l := New(s, nil)
	c := seedCampaign(t, s, models.CampaignActive, 0, 0)

	var g errgroup.Group
	for i := 0; i < donors; i++ {
		g.Go(func() error {
			_, err := l.Donate(context.Background(), DonationRequest{
				Donor:    primitive.NewObjectID(),
				Campaign: c.ID,
				Amount:   amount,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := s.FindCampaignByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, donors*amount, got.CurrentAmount)
	assert.Equal(t, donors, got.DonorsCount)

	totals := completedSum(t, s, c.ID)
	assert.Equal(t, got.CurrentAmount, totals.Amount)
	assert.Equal(t, got.DonorsCount, totals.Count)
}

// failingIncrement fails every campaign increment after the donation insert.
type failingIncrement struct {
	*store.Memory
}

func (f failingIncrement) IncrementFunding(context.Context, primitive.ObjectID, float64) error {
	return errors.New("write concern timeout")
}

func TestDonate_CompensatesFailedIncrement(t *testing.T) {
	s := failingIncrement{store.NewMemory()}
	l := New(s, nil)
	c := seedCampaign(t, s, models.CampaignActive, 0, 0)

	_, err := l.Donate(context.Background(), DonationRequest{
		Donor:    primitive.NewObjectID(),
		Campaign: c.ID,
		Amount:   40,
	})
	require.Error(t, err)

	all, err := s.ListDonations(context.Background(), store.DonationFilter{Campaign: c.ID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.DonationFailed, all[0].Status)

	got, err := s.FindCampaignByID(context.Background(), c.ID)
	require.NoError(t, err)
	totals := completedSum(t, s, c.ID)
	assert.Equal(t, got.CurrentAmount, totals.Amount)
	assert.Equal(t, got.DonorsCount, totals.Count)
}

// txStore reports itself transactional and counts WithinTx calls.
type txStore struct {
	*store.Memory
	calls int
}

func (s *txStore) Transactional() bool { return true }

func (s *txStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.calls++
	return fn(ctx)
}

func TestDonate_UsesTransactionWhenAvailable(t *testing.T) {
	s := &txStore{Memory: store.NewMemory()}
	l := New(s, nil)
	c := seedCampaign(t, s, models.CampaignActive, 0, 0)

	_, err := l.Donate(context.Background(), DonationRequest{
		Donor:    primitive.NewObjectID(),
		Campaign: c.ID,
		Amount:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls)
}

func TestReconcile_RebuildsTotals(t *testing.T) {
	s := store.NewMemory()
	l := New(s, nil)
	c := seedCampaign(t, s, models.CampaignActive, 999, 42)
	ctx := context.Background()

	for _, d := range []models.Donation{
		{Donor: primitive.NewObjectID(), Campaign: c.ID, Amount: 10.10, Status: models.DonationCompleted},
		{Donor: primitive.NewObjectID(), Campaign: c.ID, Amount: 20.20, Status: models.DonationCompleted},
		{Donor: primitive.NewObjectID(), Campaign: c.ID, Amount: 500, Status: models.DonationFailed},
		{Donor: primitive.NewObjectID(), Campaign: primitive.NewObjectID(), Amount: 7, Status: models.DonationCompleted},
	} {
		d := d
		require.NoError(t, s.CreateDonation(ctx, &d))
	}

	got, err := l.Reconcile(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 30.30, got.CurrentAmount)
	assert.Equal(t, 2, got.DonorsCount)

	_, err = l.Reconcile(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestReconcile_AgreesWithRunningTotal(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	l := New(s, nil)
	c := seedCampaign(t, s, models.CampaignActive, 0, 0)

	for _, amount := range []float64{1.1, 2.2, 3.35, 10.01, 7.77} {
		_, err := l.Donate(ctx, DonationRequest{Donor: primitive.NewObjectID(), Campaign: c.ID, Amount: amount})
		require.NoError(t, err)
	}

	running, err := s.FindCampaignByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 24.43, running.CurrentAmount)

	rebuilt, err := l.Reconcile(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, running.CurrentAmount, rebuilt.CurrentAmount)
	assert.Equal(t, running.DonorsCount, rebuilt.DonorsCount)

	// a second pass changes nothing
	again, err := l.Reconcile(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, rebuilt.CurrentAmount, again.CurrentAmount)
}

func TestReconcile_SmallSumIsExact(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	l := New(s, nil)
	c := seedCampaign(t, s, models.CampaignActive, 0, 0)

	for _, amount := range []float64{1.1, 2.2} {
		_, err := l.Donate(ctx, DonationRequest{Donor: primitive.NewObjectID(), Campaign: c.ID, Amount: amount})
		require.NoError(t, err)
	}
	running, err := s.FindCampaignByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.3, running.CurrentAmount)

	rebuilt, err := l.Reconcile(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.3, rebuilt.CurrentAmount)
}

func TestNormalizeAmount(t *testing.T) {
	got, err := NormalizeAmount(12.345)
	require.NoError(t, err)
	assert.Equal(t, 12.35, got)

	got, err = NormalizeAmount(0.999)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	_, err = NormalizeAmount(0.994)
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestCorrelationToken(t *testing.T) {
	re := regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	a, b := CorrelationToken(), CorrelationToken()
	assert.Regexp(t, re, a)
	assert.Regexp(t, re, b)
	assert.NotEqual(t, a, b)
}
