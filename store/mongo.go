package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/charitychain/charitychain-api/models"
)

const (
	usersCollection     = "users"
	campaignsCollection = "campaigns"
	donationsCollection = "donations"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

type Mongo struct {
	client        *mongo.Client
	users         *mongo.Collection
	campaigns     *mongo.Collection
	donations     *mongo.Collection
	transactional bool
}

func NewMongo(client *mongo.Client, db *mongo.Database) *Mongo {
	return &Mongo{
		client:    client,
		users:     db.Collection(usersCollection),
		campaigns: db.Collection(campaignsCollection),
		donations: db.Collection(donationsCollection),
	}
}

// Connect dials uri and verifies the deployment with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// DetectTransactions enables multi-document transactions when the server is
// a replica set member or a mongos router. Standalone servers reject them.
func (m *Mongo) DetectTransactions(ctx context.Context) error {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	err := m.users.Database().RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	m.transactional = hello.SetName != "" || hello.Msg == "isdbgrid"
	return nil
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys: bson.D{{Key: "registrationNumber", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"registrationNumber": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "verified", Value: 1}}},
		},
		m.campaigns: {
			{Keys: bson.D{{Key: "ngo", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: newestFirst},
		},
		m.donations: {
			{Keys: bson.D{{Key: "donor", Value: 1}}},
			{Keys: bson.D{{Key: "campaign", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: newestFirst},
			{Keys: bson.D{{Key: "blockchainHash", Value: 1}}},
		},
	}
	for col, idx := range indexes {
		if _, err := col.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col.Name(), err)
		}
	}
	return nil
}

func (m *Mongo) Transactional() bool { return m.transactional }

func (m *Mongo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactional {
		return fn(ctx)
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M) ([]T, error) {
	cursor, err := col.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", col.Name(), err)
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", col.Name(), err)
	}
	return out, nil
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.M) (*T, error) {
	var v T
	if err := col.FindOne(ctx, filter).Decode(&v); err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func updateOne[T any](ctx context.Context, col *mongo.Collection, filter bson.M, update bson.M) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var v T
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&v); err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

// ---------------- USERS ----------------

func userFilter(f UserFilter) bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Verified != nil {
		filter["verified"] = *f.Verified
	}
	return filter
}

func (m *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := m.users.InsertOne(ctx, u)
	return mapErr(err)
}

func (m *Mongo) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, m.users, bson.M{"_id": id})
}

func (m *Mongo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, m.users, bson.M{"email": email})
}

func (m *Mongo) UsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	users, err := findAll[models.User](ctx, m.users, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (m *Mongo) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	return findAll[models.User](ctx, m.users, userFilter(f))
}

func (m *Mongo) CountUsers(ctx context.Context, f UserFilter) (int64, error) {
	return m.users.CountDocuments(ctx, userFilter(f))
}

func (m *Mongo) SetUserVerified(ctx context.Context, id primitive.ObjectID, verified bool) (*models.User, error) {
	return updateOne[models.User](ctx, m.users, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"verified": verified, "updatedAt": time.Now()},
	})
}

func (m *Mongo) UpdateUserProfile(ctx context.Context, id primitive.ObjectID, ch ProfileChanges) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	setIf := func(key string, v *string) {
		if v != nil {
			set[key] = *v
		}
	}
	setIf("name", ch.Name)
	setIf("email", ch.Email)
	setIf("contactNumber", ch.ContactNumber)
	setIf("website", ch.Website)
	setIf("address", ch.Address)
	setIf("description", ch.Description)
	return updateOne[models.User](ctx, m.users, bson.M{"_id": id}, bson.M{"$set": set})
}

func (m *Mongo) SetUserPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := m.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"password": hash, "updatedAt": time.Now()},
		"$unset": bson.M{"resetOtp": "", "resetOtpExpiry": "", "resetOtpAttempts": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) SetUserResetOTP(ctx context.Context, id primitive.ObjectID, hash string, expiry time.Time) error {
	update := bson.M{"$set": bson.M{"resetOtp": hash, "resetOtpExpiry": expiry, "resetOtpAttempts": 0}}
	if hash == "" {
		update = bson.M{"$unset": bson.M{"resetOtp": "", "resetOtpExpiry": "", "resetOtpAttempts": ""}}
	}
	res, err := m.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordResetOTPFailure increments the attempt counter and drops the code in
// the same update once the limit is hit.
func (m *Mongo) RecordResetOTPFailure(ctx context.Context, id primitive.ObjectID, maxAttempts int) (*models.User, error) {
	spent := bson.M{"$gte": bson.A{"$resetOtpAttempts", maxAttempts}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"resetOtpAttempts": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$resetOtpAttempts", 0}}, 1}},
		}}},
		{{Key: "$set", Value: bson.M{
			"resetOtp":       bson.M{"$cond": bson.A{spent, "$$REMOVE", "$resetOtp"}},
			"resetOtpExpiry": bson.M{"$cond": bson.A{spent, "$$REMOVE", "$resetOtpExpiry"}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := m.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (m *Mongo) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------- CAMPAIGNS ----------------

func campaignFilter(f CampaignFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.NGO.IsZero() {
		filter["ngo"] = f.NGO
	}
	return filter
}

func (m *Mongo) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.Updates == nil {
		c.Updates = []models.CampaignUpdate{}
	}
	_, err := m.campaigns.InsertOne(ctx, c)
	return mapErr(err)
}

func (m *Mongo) FindCampaignByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	return findOne[models.Campaign](ctx, m.campaigns, bson.M{"_id": id})
}

func (m *Mongo) CampaignsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Campaign, error) {
	campaigns, err := findAll[models.Campaign](ctx, m.campaigns, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]*models.Campaign, len(campaigns))
	for i := range campaigns {
		out[campaigns[i].ID] = &campaigns[i]
	}
	return out, nil
}

func (m *Mongo) ListCampaigns(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	return findAll[models.Campaign](ctx, m.campaigns, campaignFilter(f))
}

func (m *Mongo) CountCampaigns(ctx context.Context, f CampaignFilter) (int64, error) {
	return m.campaigns.CountDocuments(ctx, campaignFilter(f))
}

func (m *Mongo) UpdateCampaign(ctx context.Context, id primitive.ObjectID, ch CampaignChanges) (*models.Campaign, error) {
	set := bson.M{"updatedAt": time.Now()}
	if ch.Title != nil {
		set["title"] = *ch.Title
	}
	if ch.Description != nil {
		set["description"] = *ch.Description
	}
	if ch.Category != nil {
		set["category"] = *ch.Category
	}
	if ch.TargetAmount != nil {
		set["targetAmount"] = *ch.TargetAmount
	}
	if ch.EndDate != nil {
		set["endDate"] = *ch.EndDate
	}
	if ch.ImageURL != nil {
		set["imageUrl"] = *ch.ImageURL
	}
	return updateOne[models.Campaign](ctx, m.campaigns, bson.M{"_id": id}, bson.M{"$set": set})
}

func (m *Mongo) AppendCampaignUpdate(ctx context.Context, id primitive.ObjectID, up models.CampaignUpdate) (*models.Campaign, error) {
	return updateOne[models.Campaign](ctx, m.campaigns, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"updates": up},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
}

func (m *Mongo) SetCampaignStatus(ctx context.Context, id primitive.ObjectID, status models.CampaignStatus) (*models.Campaign, error) {
	return updateOne[models.Campaign](ctx, m.campaigns, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now()},
	})
}

// IncrementFunding adds amount to the running total, rounded to cents the way
// models.RoundCents does, so a later reconcile lands on the same value.
func (m *Mongo) IncrementFunding(ctx context.Context, id primitive.ObjectID, amount float64) error {
	res, err := m.campaigns.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.CampaignActive},
		mongo.Pipeline{{{Key: "$set", Value: bson.M{
			"currentAmount": bson.M{"$round": bson.A{bson.M{"$add": bson.A{"$currentAmount", amount}}, 2}},
			"donorsCount":   bson.M{"$add": bson.A{"$donorsCount", 1}},
			"updatedAt":     time.Now(),
		}}}},
	)
	if err != nil {
		return fmt.Errorf("increment funding: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) SetFunding(ctx context.Context, id primitive.ObjectID, amount float64, donors int) (*models.Campaign, error) {
	return updateOne[models.Campaign](ctx, m.campaigns, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"currentAmount": amount, "donorsCount": donors, "updatedAt": time.Now()},
	})
}

// ---------------- DONATIONS ----------------

func donationFilter(f DonationFilter) bson.M {
	filter := bson.M{}
	if !f.Donor.IsZero() {
		filter["donor"] = f.Donor
	}
	if !f.Campaign.IsZero() {
		filter["campaign"] = f.Campaign
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (m *Mongo) CreateDonation(ctx context.Context, d *models.Donation) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	_, err := m.donations.InsertOne(ctx, d)
	return mapErr(err)
}

func (m *Mongo) FindDonationByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	return findOne[models.Donation](ctx, m.donations, bson.M{"_id": id})
}

func (m *Mongo) ListDonations(ctx context.Context, f DonationFilter) ([]models.Donation, error) {
	return findAll[models.Donation](ctx, m.donations, donationFilter(f))
}

func (m *Mongo) SetDonationStatus(ctx context.Context, id primitive.ObjectID, status models.DonationStatus) error {
	res, err := m.donations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DonationTotals(ctx context.Context, f DonationFilter) (Totals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: donationFilter(f)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "amount", Value: bson.M{"$sum": "$amount"}},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "donors", Value: bson.M{"$addToSet": "$donor"}},
			{Key: "campaigns", Value: bson.M{"$addToSet": "$campaign"}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "amount", Value: 1},
			{Key: "count", Value: 1},
			{Key: "donors", Value: bson.M{"$size": "$donors"}},
			{Key: "campaigns", Value: bson.M{"$size": "$campaigns"}},
		}}},
	}
	cursor, err := m.donations.Aggregate(ctx, pipeline)
	if err != nil {
		return Totals{}, fmt.Errorf("aggregate donations: %w", err)
	}
	var rows []struct {
		Amount    float64 `bson:"amount"`
		Count     int     `bson:"count"`
		Donors    int     `bson:"donors"`
		Campaigns int     `bson:"campaigns"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return Totals{}, fmt.Errorf("decode donation totals: %w", err)
	}
	if len(rows) == 0 {
		return Totals{}, nil
	}
	r := rows[0]
	return Totals{Amount: r.Amount, Count: r.Count, Donors: r.Donors, Campaigns: r.Campaigns}, nil
}
