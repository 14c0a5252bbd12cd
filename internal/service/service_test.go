package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/busybox42/lettera/internal/catalog"
	"github.com/busybox42/lettera/internal/dispatch"
	"github.com/busybox42/lettera/internal/letter"
	"github.com/busybox42/lettera/internal/lookup"
	"github.com/busybox42/lettera/internal/store"
	"github.com/busybox42/lettera/internal/validation"
)

type stubRegistry struct {
	known map[string]string
}

func (r *stubRegistry) GetApplicationInfo(_ context.Context, id string) (*lookup.ApplicationInfo, error) {
	name, ok := r.known[id]
	if !ok {
		return nil, nil
	}
	return &lookup.ApplicationInfo{ID: id, Name: name}, nil
}

type stubTemplates struct{}

func (stubTemplates) GetLetterTemplate(context.Context, string) ([]letter.FieldError, error) {
	return nil, nil
}

type fixture struct {
	svc       *Service
	store     store.Store
	transport *dispatch.MockTransport
}

func newFixture(t *testing.T, level dispatch.SendLevel) *fixture {
	t.Helper()

	st, err := store.Factory(store.Config{
		Type: "sqlite",
		Name: "test",
		Path: filepath.Join(t.TempDir(), "lettera-test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, st.Connect())
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.SeedTagNames(ctx, []string{"claimNumber", "policyNumber"}))

	cat := catalog.New(st.SearchParameterNames)
	registry := &stubRegistry{known: map[string]string{"42": "claims-portal"}}
	validator := validation.NewEngine(registry, stubTemplates{}, nil)
	transport := dispatch.NewMockTransport()
	dispatcher := dispatch.NewEngine(level, transport, nil)

	return &fixture{
		svc:       New(st, cat, validator, dispatcher, nil),
		store:     st,
		transport: transport,
	}
}

func draftLetter() *letter.Letter {
	content := "Dear member, your claim has been received."
	subject := "Claim received"
	status := letter.Draft
	return &letter.Letter{
		Content:       &content,
		Status:        &status,
		StatusUser:    "jdoe",
		ApplicationID: "42",
		EmailInfo: &letter.EmailInfo{
			Subject: &subject,
			From:    "claims@example.com",
			To:      []string{"member@example.com"},
			CC:      []string{},
			BCC:     []string{},
		},
		SearchParameters: []letter.SearchParameter{
			{Key: "claimNumber", Value: "C-100"},
		},
	}
}

func TestCreateLetter(t *testing.T) {
	ctx := context.Background()

	t.Run("Draft with tags round trips", func(t *testing.T) {
		f := newFixture(t, dispatch.Log)

		l := draftLetter()
		l.SearchParameters = []letter.SearchParameter{
			{Key: "claimNumber", Value: "C-100"},
			{Key: "policyNumber", Value: "P-200"},
		}

		created, err := f.svc.CreateLetter(ctx, l)
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.False(t, created.StatusDate.IsZero())
		require.Len(t, created.SearchParameters, 2)
		assert.Equal(t, created.ID+"-claimNumber", created.SearchParameters[0].ID)

		got, err := f.svc.GetLetter(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, letter.Draft, got.EffectiveStatus())
		assert.Len(t, got.SearchParameters, 2)
	})

	t.Run("Validation failure writes nothing", func(t *testing.T) {
		f := newFixture(t, dispatch.Log)

		l := draftLetter()
		l.ApplicationID = "9999" // unknown application

		_, err := f.svc.CreateLetter(ctx, l)

		var verr *letter.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Errors, 1)
		assert.Equal(t, "applicationId", verr.Errors[0].Field)

		letters, err := f.store.FindLetters(ctx, "claimNumber", "C-100",
			map[string]struct{}{"claimNumber": {}})
		require.NoError(t, err)
		assert.Empty(t, letters)
	})

	t.Run("Unknown tag key fails the create", func(t *testing.T) {
		f := newFixture(t, dispatch.Log)

		l := draftLetter()
		l.SearchParameters = []letter.SearchParameter{{Key: "notAKey", Value: "x"}}

		_, err := f.svc.CreateLetter(ctx, l)
		assert.ErrorIs(t, err, letter.ErrInvalidTag)
	})
}

func TestUpdateLetter(t *testing.T) {
	ctx := context.Background()

	t.Run("Draft to Sent", func(t *testing.T) {
		f := newFixture(t, dispatch.Log)

		created, err := f.svc.CreateLetter(ctx, draftLetter())
		require.NoError(t, err)

		send := draftLetter()
		send.ID = created.ID
		sent := letter.Sent
		send.Status = &sent
		send.StatusUser = "approver"

		updated, err := f.svc.UpdateLetter(ctx, send)
		require.NoError(t, err)
		assert.Equal(t, letter.Sent, updated.EffectiveStatus())
		assert.Equal(t, "approver", updated.StatusUser)
	})

	t.Run("Sent letter rejects further updates", func(t *testing.T) {
		f := newFixture(t, dispatch.Log)

		created, err := f.svc.CreateLetter(ctx, draftLetter())
		require.NoError(t, err)

		send := draftLetter()
		send.ID = created.ID
		sent := letter.Sent
		send.Status = &sent
		_, err = f.svc.UpdateLetter(ctx, send)
		require.NoError(t, err)

		again := draftLetter()
		again.ID = created.ID
		_, err = f.svc.UpdateLetter(ctx, again)
		assert.ErrorIs(t, err, letter.ErrAlreadySent)
	})
}

func TestFindLetters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dispatch.Log)

	l := draftLetter()
	l.SearchParameters = []letter.SearchParameter{
		{Key: "claimNumber", Value: "C-100"},
		{Key: "policyNumber", Value: "P-200"},
	}
	created, err := f.svc.CreateLetter(ctx, l)
	require.NoError(t, err)

	t.Run("Single pair matches", func(t *testing.T) {
		letters, err := f.svc.FindLetters(ctx, []letter.SearchParameter{
			{Key: "claimNumber", Value: "C-100"},
		})
		require.NoError(t, err)
		require.Len(t, letters, 1)
		assert.Equal(t, created.ID, letters[0].ID)
		assert.Len(t, letters[0].SearchParameters, 2, "matches come back with all their tags")
	})

	t.Run("Two pairs rejected", func(t *testing.T) {
		_, err := f.svc.FindLetters(ctx, []letter.SearchParameter{
			{Key: "claimNumber", Value: "C-100"},
			{Key: "policyNumber", Value: "P-200"},
		})

		var verr *letter.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Errors, 1)
		assert.Equal(t, "queryParameters", verr.Errors[0].Field)
	})

	t.Run("No match is an empty result", func(t *testing.T) {
		letters, err := f.svc.FindLetters(ctx, []letter.SearchParameter{
			{Key: "claimNumber", Value: "C-404"},
		})
		require.NoError(t, err)
		assert.Empty(t, letters)
	})
}

func TestDeleteLetter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dispatch.Log)

	created, err := f.svc.CreateLetter(ctx, draftLetter())
	require.NoError(t, err)

	deleted, err := f.svc.DeleteLetter(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = f.svc.GetLetter(ctx, created.ID)
	assert.ErrorIs(t, err, letter.ErrNotFound)
}

func TestGetSearchParameters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dispatch.Log)

	l := draftLetter()
	l.SearchParameters = []letter.SearchParameter{{Key: "claimNumber", Value: "C-100"}}
	created, err := f.svc.CreateLetter(ctx, l)
	require.NoError(t, err)

	params, err := f.svc.GetSearchParameters(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "claimNumber", params[0].Key)

	t.Run("Non-numeric id rejected", func(t *testing.T) {
		_, err := f.svc.GetSearchParameters(ctx, "abc")
		var verr *letter.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestSendLetter(t *testing.T) {
	ctx := context.Background()

	request := func() *letter.SendRequest {
		return &letter.SendRequest{
			Letter: draftLetter(),
			MetaData: &letter.SendMetaData{
				DebugRecipients: []string{"dev@example.com"},
			},
		}
	}

	t.Run("Debug level reroutes", func(t *testing.T) {
		f := newFixture(t, dispatch.Debug)

		require.NoError(t, f.svc.SendLetter(ctx, request()))

		msgs := f.transport.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, []string{"dev@example.com"}, msgs[0].To)
	})

	t.Run("Invalid request never reaches the transport", func(t *testing.T) {
		f := newFixture(t, dispatch.Debug)

		req := request()
		req.Letter.EmailInfo.To = nil

		err := f.svc.SendLetter(ctx, req)
		var verr *letter.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Empty(t, f.transport.Messages())
	})

	t.Run("Nothing is persisted", func(t *testing.T) {
		f := newFixture(t, dispatch.Debug)

		require.NoError(t, f.svc.SendLetter(ctx, request()))

		letters, err := f.store.FindLetters(ctx, "claimNumber", "C-100",
			map[string]struct{}{"claimNumber": {}})
		require.NoError(t, err)
		assert.Empty(t, letters)
	})
}
