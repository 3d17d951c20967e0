package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/charitychain/charitychain-api/models"
)

func TestTokenRoundTrip(t *testing.T) {
	u := &models.User{ID: primitive.NewObjectID(), Role: models.RoleNGO}

	token, err := IssueToken("s3cret", time.Hour, u)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.Hex(), claims.ID)
	assert.Equal(t, models.RoleNGO, claims.Role)

	_, err = ParseToken("other", token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	u := &models.User{ID: primitive.NewObjectID(), Role: models.RoleDonor}
	token, err := IssueToken("s3cret", -time.Minute, u)
	require.NoError(t, err)

	_, err = ParseToken("s3cret", token)
	assert.Error(t, err)
}

func TestIssueTokenNeedsSecret(t *testing.T) {
	_, err := IssueToken("", time.Hour, &models.User{})
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}

func TestGenerateETag(t *testing.T) {
	id := primitive.NewObjectID()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	owner := ts.Add(-time.Hour)

	a := GenerateETag(id, 1, ts)
	assert.Equal(t, a, GenerateETag(id, 1, ts))
	assert.NotEqual(t, a, GenerateETag(id, 1, ts.Add(time.Second)))
	assert.NotEqual(t, a, GenerateETag(id, 2, ts))
	assert.Regexp(t, `^W/"[0-9a-f]{40}"$`, a)

	// related documents count even when they are older
	withOwner := GenerateETag(id, 1, ts, owner)
	assert.NotEqual(t, withOwner, GenerateETag(id, 1, ts, owner.Add(time.Minute)))
	assert.NotEqual(t, withOwner, GenerateETag(id, 1, ts, time.Time{}))
}

func TestExtractPublicID(t *testing.T) {
	cases := map[string]string{
		"https://res.cloudinary.com/demo/image/upload/v1234567890/campaigns/abc123.jpg": "campaigns/abc123",
		"https://res.cloudinary.com/demo/image/upload/campaigns/abc123.png":             "campaigns/abc123",
		"https://res.cloudinary.com/demo/image/upload/v99/sample.webp":                  "sample",
	}
	for in, want := range cases {
		got, err := ExtractPublicID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ExtractPublicID("https://example.com/not/a/cloudinary/url.jpg")
	assert.Error(t, err)
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 20; i++ {
		otp, err := GenerateOTP()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, otp)
	}
}

func TestZeptoMailerSend(t *testing.T) {
	var got emailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-enczapikey test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewZeptoMailer(srv.URL, "Zoho-enczapikey test", "noreply@charitychain.org", nil)
	subject, body := PasswordResetEmail("Ada <script>", "123456")

	require.NoError(t, m.Send(context.Background(), "ada@example.org", "Ada", subject, body))
	assert.Equal(t, "noreply@charitychain.org", got.From.Address)
	require.Len(t, got.To, 1)
	assert.Equal(t, "ada@example.org", got.To[0].Email.Address)
	assert.Contains(t, got.HtmlBody, "123456")
	assert.NotContains(t, got.HtmlBody, "<script>")
}

func TestZeptoMailerRequiresConfig(t *testing.T) {
	m := NewZeptoMailer("", "", "", nil)
	assert.Error(t, m.Send(context.Background(), "a@b.org", "A", "s", "b"))
}
