package signal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/services/testutil"
	"careerloop-engine/services/verification"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &Signal{})
	return NewService(Params{DB: db, Node: testutil.NewNode(t)})
}

var monday = time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC)

func TestAppend_DedupesByExternalID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := AppendParams{UserID: "user-1", Kind: "post-reaction", Actor: "a", Source: "linkedin", ExternalID: "evt-1", HappenedAt: monday.Add(time.Hour)}
	first, created, err := svc.Append(ctx, p)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := svc.Append(ctx, p)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)

	// signals without an external id are never deduplicated
	p.ExternalID = ""
	_, created, err = svc.Append(ctx, p)
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = svc.Append(ctx, p)
	require.NoError(t, err)
	require.True(t, created)

	var count int64
	require.NoError(t, svc.db.Model(&Signal{}).Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestAppend_Validation(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Append(context.Background(), AppendParams{})
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusValidationFailed, be.Code)
	require.Len(t, be.Details, 3)
	require.ErrorIs(t, err, ErrInvalidSignal)
}

func TestAppendBatch_ContinuesPastFailures(t *testing.T) {
	svc := newTestService(t)

	res := svc.AppendBatch(context.Background(), []AppendParams{
		{UserID: "user-1", Kind: "commit-pushed", HappenedAt: monday, ExternalID: "c1", Source: "github"},
		{UserID: "", Kind: "commit-pushed", HappenedAt: monday},
		{UserID: "user-1", Kind: "commit-pushed", HappenedAt: monday, ExternalID: "c1", Source: "github"},
		{UserID: "user-1", Kind: "commit-pushed", HappenedAt: monday.Add(24 * time.Hour), ExternalID: "c2", Source: "github"},
	})
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, 1, res.Duplicates)
	require.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
}

func TestListInWindow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	w := verification.Window{Start: monday, End: monday.AddDate(0, 0, 7).Add(-time.Millisecond)}

	for _, p := range []AppendParams{
		{UserID: "user-1", Kind: "post-reaction", Actor: "a", HappenedAt: monday.Add(-time.Second)},
		{UserID: "user-1", Kind: "post-reaction", Actor: "b", HappenedAt: monday},
		{UserID: "user-1", Kind: "comment-received", Actor: "c", HappenedAt: w.End},
		{UserID: "user-1", Kind: "post-reaction", Actor: "d", HappenedAt: w.End.Add(time.Millisecond)},
		{UserID: "user-2", Kind: "post-reaction", Actor: "e", HappenedAt: monday.Add(time.Hour)},
	} {
		_, _, err := svc.Append(ctx, p)
		require.NoError(t, err)
	}

	rows, err := svc.ListInWindow(ctx, "user-1", w)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "b", rows[0].Actor)
	require.Equal(t, "c", rows[1].Actor)

	rows, err = svc.ListInWindow(ctx, "user-1", w, "comment-received")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	signals, err := svc.ForVerification(ctx, "user-1", w)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	require.Equal(t, "post-reaction", signals[0].Kind)
}

func TestHandleMessage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleMessage(ctx, []byte("{not json")))
	require.NoError(t, svc.HandleMessage(ctx, []byte(`{"kind":"x"}`)))

	body, err := json.Marshal(AppendParams{UserID: "user-1", Kind: "invite-accepted", Actor: "z", HappenedAt: monday, ExternalID: "k-1"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleMessage(ctx, body))
	require.NoError(t, svc.HandleMessage(ctx, body))

	rows, err := svc.ListInWindow(ctx, "user-1", verification.Window{Start: monday, End: monday.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, SourceKafka, rows[0].Source)
}

func TestAuthenticator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("li_secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Ingestion.APIKeyHashes = []string{string(hash)}
	cfg.Ingestion.SigningKey = "0123456789abcdef0123456789abcdef"
	auth, err := NewAuthenticator(cfg)
	require.NoError(t, err)

	require.NoError(t, auth.CheckAPIKey("li_secret"))
	require.ErrorIs(t, auth.CheckAPIKey("li_other"), ErrInvalidAPIKey)
	require.ErrorIs(t, auth.CheckAPIKey(""), ErrInvalidAPIKey)
	require.Equal(t, "linkedin", SourceFromAPIKey("li_secret"))
	require.Equal(t, SourceAPI, SourceFromAPIKey("whatever"))

	require.True(t, auth.SignedPayloads())
	token, err := auth.Seal([]byte(`{"user_id":"user-1"}`))
	require.NoError(t, err)

	payload, err := auth.Open([]byte(token))
	require.NoError(t, err)
	require.JSONEq(t, `{"user_id":"user-1"}`, string(payload))

	other, err := NewAuthenticator(&config.Config{Ingestion: cfg.Ingestion})
	require.NoError(t, err)
	other.signingKey = []byte("ffffffffffffffffffffffffffffffff")
	_, err = other.Open([]byte(token))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewAuthenticator_SigningKeyLength(t *testing.T) {
	cfg := &config.Config{}
	cfg.Ingestion.SigningKey = "webhook-secret"
	_, err := NewAuthenticator(cfg)
	require.ErrorIs(t, err, ErrWeakSigningKey)

	cfg.Ingestion.SigningKey = ""
	auth, err := NewAuthenticator(cfg)
	require.NoError(t, err)
	require.False(t, auth.SignedPayloads())

	cfg.Ingestion.SigningKey = "0123456789abcdef0123456789abcdef"
	auth, err = NewAuthenticator(cfg)
	require.NoError(t, err)
	token, err := auth.Seal([]byte(`{}`))
	require.NoError(t, err)
	_, err = auth.Open([]byte(token))
	require.NoError(t, err)
}
