package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/charitychain/charitychain-api/models"
)

// Memory is a process-local Store. It holds one lock for all collections, so
// every method is atomic on its own; WithinTx does not group calls.
type Memory struct {
	mu        sync.RWMutex
	users     []*models.User
	campaigns []*models.Campaign
	donations []*models.Donation
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Transactional() bool { return false }

func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyCampaign(c *models.Campaign) *models.Campaign {
	out := *c
	out.Updates = slices.Clone(c.Updates)
	return &out
}

func copyDonation(d *models.Donation) *models.Donation {
	c := *d
	return &c
}

// sortNewestFirst orders by createdAt descending, later inserts first on ties.
func sortNewestFirst[T any](items []T, created func(T) time.Time) {
	slices.Reverse(items)
	slices.SortStableFunc(items, func(a, b T) int {
		return created(b).Compare(created(a))
	})
}

// ---------------- USERS ----------------

func (m *Memory) userIndex(id primitive.ObjectID) int {
	return slices.IndexFunc(m.users, func(u *models.User) bool { return u.ID == id })
}

func matchUser(u *models.User, f UserFilter) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Verified != nil && u.Verified != *f.Verified {
		return false
	}
	return true
}

func (m *Memory) emailTaken(email string, except primitive.ObjectID) bool {
	return slices.ContainsFunc(m.users, func(u *models.User) bool {
		return u.Email == email && u.ID != except
	})
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if m.emailTaken(u.Email, u.ID) {
		return ErrDuplicate
	}
	if u.RegistrationNumber != nil {
		taken := slices.ContainsFunc(m.users, func(o *models.User) bool {
			return o.RegistrationNumber != nil && *o.RegistrationNumber == *u.RegistrationNumber
		})
		if taken {
			return ErrDuplicate
		}
	}
	m.users = append(m.users, copyUser(u))
	return nil
}

func (m *Memory) FindUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.userIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return copyUser(m.users[i]), nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UsersByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[primitive.ObjectID]*models.User, len(ids))
	for _, u := range m.users {
		if slices.Contains(ids, u.ID) {
			out[u.ID] = copyUser(u)
		}
	}
	return out, nil
}

func (m *Memory) ListUsers(_ context.Context, f UserFilter) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.User{}
	for _, u := range m.users {
		if matchUser(u, f) {
			out = append(out, *copyUser(u))
		}
	}
	sortNewestFirst(out, func(u models.User) time.Time { return u.CreatedAt })
	return out, nil
}

func (m *Memory) CountUsers(_ context.Context, f UserFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, u := range m.users {
		if matchUser(u, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) mutateUser(id primitive.ObjectID, fn func(u *models.User) error) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.userIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	u := copyUser(m.users[i])
	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now()
	m.users[i] = u
	return copyUser(u), nil
}

func (m *Memory) SetUserVerified(_ context.Context, id primitive.ObjectID, verified bool) (*models.User, error) {
	return m.mutateUser(id, func(u *models.User) error {
		u.Verified = verified
		return nil
	})
}

func (m *Memory) UpdateUserProfile(_ context.Context, id primitive.ObjectID, ch ProfileChanges) (*models.User, error) {
	return m.mutateUser(id, func(u *models.User) error {
		if ch.Email != nil {
			if m.emailTaken(*ch.Email, id) {
				return ErrDuplicate
			}
			u.Email = *ch.Email
		}
		assign := func(dst *string, v *string) {
			if v != nil {
				*dst = *v
			}
		}
		assign(&u.Name, ch.Name)
		assign(&u.ContactNumber, ch.ContactNumber)
		assign(&u.Website, ch.Website)
		assign(&u.Address, ch.Address)
		assign(&u.Description, ch.Description)
		return nil
	})
}

func (m *Memory) SetUserPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	_, err := m.mutateUser(id, func(u *models.User) error {
		u.Password = hash
		u.ResetOTP = ""
		u.ResetOTPExpiry = nil
		u.ResetOTPAttempts = 0
		return nil
	})
	return err
}

func (m *Memory) RecordResetOTPFailure(_ context.Context, id primitive.ObjectID, maxAttempts int) (*models.User, error) {
	return m.mutateUser(id, func(u *models.User) error {
		u.ResetOTPAttempts++
		if u.ResetOTPAttempts >= maxAttempts {
			u.ResetOTP = ""
			u.ResetOTPExpiry = nil
		}
		return nil
	})
}

func (m *Memory) SetUserResetOTP(_ context.Context, id primitive.ObjectID, hash string, expiry time.Time) error {
	_, err := m.mutateUser(id, func(u *models.User) error {
		u.ResetOTP = hash
		u.ResetOTPExpiry = nil
		u.ResetOTPAttempts = 0
		if hash != "" {
			u.ResetOTPExpiry = &expiry
		}
		return nil
	})
	return err
}

func (m *Memory) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.userIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.users = slices.Delete(m.users, i, i+1)
	return nil
}

// ---------------- CAMPAIGNS ----------------

func (m *Memory) campaignIndex(id primitive.ObjectID) int {
	return slices.IndexFunc(m.campaigns, func(c *models.Campaign) bool { return c.ID == id })
}

func matchCampaign(c *models.Campaign, f CampaignFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if !f.NGO.IsZero() && c.NGO != f.NGO {
		return false
	}
	return true
}

func (m *Memory) CreateCampaign(_ context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.Updates == nil {
		c.Updates = []models.CampaignUpdate{}
	}
	if m.campaignIndex(c.ID) >= 0 {
		return ErrDuplicate
	}
	m.campaigns = append(m.campaigns, copyCampaign(c))
	return nil
}

func (m *Memory) FindCampaignByID(_ context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.campaignIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return copyCampaign(m.campaigns[i]), nil
}

func (m *Memory) CampaignsByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[primitive.ObjectID]*models.Campaign, len(ids))
	for _, c := range m.campaigns {
		if slices.Contains(ids, c.ID) {
			out[c.ID] = copyCampaign(c)
		}
	}
	return out, nil
}

func (m *Memory) ListCampaigns(_ context.Context, f CampaignFilter) ([]models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Campaign{}
	for _, c := range m.campaigns {
		if matchCampaign(c, f) {
			out = append(out, *copyCampaign(c))
		}
	}
	sortNewestFirst(out, func(c models.Campaign) time.Time { return c.CreatedAt })
	return out, nil
}

func (m *Memory) CountCampaigns(_ context.Context, f CampaignFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, c := range m.campaigns {
		if matchCampaign(c, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) mutateCampaign(id primitive.ObjectID, match func(c *models.Campaign) bool, fn func(c *models.Campaign)) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.campaignIndex(id)
	if i < 0 || (match != nil && !match(m.campaigns[i])) {
		return nil, ErrNotFound
	}
	c := copyCampaign(m.campaigns[i])
	fn(c)
	c.UpdatedAt = time.Now()
	m.campaigns[i] = c
	return copyCampaign(c), nil
}

func (m *Memory) UpdateCampaign(_ context.Context, id primitive.ObjectID, ch CampaignChanges) (*models.Campaign, error) {
	return m.mutateCampaign(id, nil, func(c *models.Campaign) {
		if ch.Title != nil {
			c.Title = *ch.Title
		}
		if ch.Description != nil {
			c.Description = *ch.Description
		}
		if ch.Category != nil {
			c.Category = *ch.Category
		}
		if ch.TargetAmount != nil {
			c.TargetAmount = *ch.TargetAmount
		}
		if ch.EndDate != nil {
			c.EndDate = *ch.EndDate
		}
		if ch.ImageURL != nil {
			url := *ch.ImageURL
			c.ImageURL = &url
		}
	})
}

func (m *Memory) AppendCampaignUpdate(_ context.Context, id primitive.ObjectID, up models.CampaignUpdate) (*models.Campaign, error) {
	return m.mutateCampaign(id, nil, func(c *models.Campaign) {
		c.Updates = append(c.Updates, up)
	})
}

func (m *Memory) SetCampaignStatus(_ context.Context, id primitive.ObjectID, status models.CampaignStatus) (*models.Campaign, error) {
	return m.mutateCampaign(id, nil, func(c *models.Campaign) {
		c.Status = status
	})
}

func (m *Memory) IncrementFunding(_ context.Context, id primitive.ObjectID, amount float64) error {
	active := func(c *models.Campaign) bool { return c.Status == models.CampaignActive }
	_, err := m.mutateCampaign(id, active, func(c *models.Campaign) {
		c.CurrentAmount = models.RoundCents(c.CurrentAmount + amount)
		c.DonorsCount++
	})
	return err
}

func (m *Memory) SetFunding(_ context.Context, id primitive.ObjectID, amount float64, donors int) (*models.Campaign, error) {
	return m.mutateCampaign(id, nil, func(c *models.Campaign) {
		c.CurrentAmount = amount
		c.DonorsCount = donors
	})
}

// ---------------- DONATIONS ----------------

func matchDonation(d *models.Donation, f DonationFilter) bool {
	if !f.Donor.IsZero() && d.Donor != f.Donor {
		return false
	}
	if !f.Campaign.IsZero() && d.Campaign != f.Campaign {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	return true
}

func (m *Memory) donationIndex(id primitive.ObjectID) int {
	return slices.IndexFunc(m.donations, func(d *models.Donation) bool { return d.ID == id })
}

func (m *Memory) CreateDonation(_ context.Context, d *models.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if m.donationIndex(d.ID) >= 0 {
		return ErrDuplicate
	}
	m.donations = append(m.donations, copyDonation(d))
	return nil
}

func (m *Memory) FindDonationByID(_ context.Context, id primitive.ObjectID) (*models.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.donationIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return copyDonation(m.donations[i]), nil
}

func (m *Memory) ListDonations(_ context.Context, f DonationFilter) ([]models.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Donation{}
	for _, d := range m.donations {
		if matchDonation(d, f) {
			out = append(out, *copyDonation(d))
		}
	}
	sortNewestFirst(out, func(d models.Donation) time.Time { return d.CreatedAt })
	return out, nil
}

func (m *Memory) SetDonationStatus(_ context.Context, id primitive.ObjectID, status models.DonationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.donationIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	d := copyDonation(m.donations[i])
	d.Status = status
	d.UpdatedAt = time.Now()
	m.donations[i] = d
	return nil
}

func (m *Memory) DonationTotals(_ context.Context, f DonationFilter) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var t Totals
	donors := map[primitive.ObjectID]struct{}{}
	campaigns := map[primitive.ObjectID]struct{}{}
	for _, d := range m.donations {
		if !matchDonation(d, f) {
			continue
		}
		t.Amount += d.Amount
		t.Count++
		donors[d.Donor] = struct{}{}
		campaigns[d.Campaign] = struct{}{}
	}
	t.Donors = len(donors)
	t.Campaigns = len(campaigns)
	return t, nil
}
