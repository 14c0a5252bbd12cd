package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/busybox42/lettera/internal/catalog"
	"github.com/busybox42/lettera/internal/dispatch"
	"github.com/busybox42/lettera/internal/letter"
	"github.com/busybox42/lettera/internal/lookup"
	"github.com/busybox42/lettera/internal/service"
	"github.com/busybox42/lettera/internal/store"
	"github.com/busybox42/lettera/internal/validation"
)

type stubRegistry struct{}

func (stubRegistry) GetApplicationInfo(_ context.Context, id string) (*lookup.ApplicationInfo, error) {
	if id != "42" {
		return nil, nil
	}
	return &lookup.ApplicationInfo{ID: id, Name: "claims-portal"}, nil
}

type stubTemplates struct{}

func (stubTemplates) GetLetterTemplate(context.Context, string) ([]letter.FieldError, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *dispatch.MockTransport) {
	t.Helper()

	st, err := store.Factory(store.Config{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "lettera-test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, st.Connect())
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.SeedTagNames(context.Background(), []string{"claimNumber"}))

	cat := catalog.New(st.SearchParameterNames)
	validator := validation.NewEngine(stubRegistry{}, stubTemplates{}, nil)
	transport := dispatch.NewMockTransport()
	dispatcher := dispatch.NewEngine(dispatch.Debug, transport, nil)
	svc := service.New(st, cat, validator, dispatcher, nil)

	srv, err := NewServer(&Config{Enabled: true}, svc, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, transport
}

func letterBody() map[string]interface{} {
	return map[string]interface{}{
		"content":       "Dear member, your claim has been received.",
		"status":        "Draft",
		"statusUser":    "jdoe",
		"applicationId": "42",
		"emailInfo": map[string]interface{}{
			"subject": "Claim received",
			"from":    "claims@example.com",
			"to":      []string{"member@example.com"},
			"cc":      []string{},
			"bcc":     []string{},
		},
		"searchParameters": []map[string]string{
			{"key": "claimNumber", "value": "C-100"},
		},
	}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeLetter(t *testing.T, resp *http.Response) (*letter.Letter, []letter.FieldError) {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Errors []letter.FieldError `json:"errors"`
		Letter *letter.Letter      `json:"letter"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Letter, envelope.Errors
}

func createLetter(t *testing.T, ts *httptest.Server) *letter.Letter {
	t.Helper()
	resp := postJSON(t, ts.URL+"/letter", letterBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created, errs := decodeLetter(t, resp)
	require.Empty(t, errs)
	require.NotNil(t, created)
	return created
}

func TestCreateAndGetLetter(t *testing.T) {
	ts, _ := newTestServer(t)

	created := createLetter(t, ts)
	require.NotEmpty(t, created.ID)

	resp, err := http.Get(ts.URL + "/letter/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, errs := decodeLetter(t, resp)
	assert.Empty(t, errs)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, letter.Draft, got.EffectiveStatus())
	assert.Len(t, got.SearchParameters, 1)
}

func TestCreateLetterValidationFailure(t *testing.T) {
	ts, _ := newTestServer(t)

	body := letterBody()
	body["applicationId"] = "not-a-number"

	resp := postJSON(t, ts.URL+"/letter", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, errs := decodeLetter(t, resp)
	require.Len(t, errs, 1)
	assert.Equal(t, "applicationId", errs[0].Field)
}

func TestGetLetterNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/letter/99999")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetLetterBadID(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/letter/abc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, errs := decodeLetter(t, resp)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "valid integer")
}

func TestFindLetters(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createLetter(t, ts)

	t.Run("Match", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/letter?claimNumber=C-100")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		defer resp.Body.Close()

		var envelope struct {
			Letters []*letter.Letter `json:"letters"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		require.Len(t, envelope.Letters, 1)
		assert.Equal(t, created.ID, envelope.Letters[0].ID)
	})

	t.Run("Two pairs rejected", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/letter?claimNumber=C-100&policyNumber=P-200")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("Unknown key rejected", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/letter?notAKey=x")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestUpdateLetter(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createLetter(t, ts)

	body := letterBody()
	body["status"] = "Sent"
	body["statusUser"] = "approver"

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/letter/"+created.ID, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated, errs := decodeLetter(t, resp)
	assert.Empty(t, errs)
	require.NotNil(t, updated)
	assert.Equal(t, letter.Sent, updated.EffectiveStatus())

	t.Run("Sent letter rejects update", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPut, ts.URL+"/letter/"+created.ID, bytes.NewReader(data))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		_, errs := decodeLetter(t, resp)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Message, "already been sent")
	})
}

func TestDeleteLetter(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createLetter(t, ts)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/letter/"+created.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	deleted, _ := decodeLetter(t, resp)
	require.NotNil(t, deleted)
	assert.Equal(t, created.ID, deleted.ID)

	getResp, err := http.Get(ts.URL + "/letter/" + created.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
	getResp.Body.Close()
}

func TestGetSearchParameters(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createLetter(t, ts)

	resp, err := http.Get(fmt.Sprintf("%s/letter/%s/searchparameters", ts.URL, created.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var envelope struct {
		SearchParameters []letter.SearchParameter `json:"searchParameters"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.SearchParameters, 1)
	assert.Equal(t, "claimNumber", envelope.SearchParameters[0].Key)
	assert.Equal(t, created.ID+"-claimNumber", envelope.SearchParameters[0].ID)
}

func TestSendLetter(t *testing.T) {
	ts, transport := newTestServer(t)

	body := map[string]interface{}{
		"letter": letterBody(),
		"sendMetaData": map[string]interface{}{
			"debugRecipients": []string{"dev@example.com"},
		},
	}

	resp := postJSON(t, ts.URL+"/sendletter", body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	msgs := transport.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"dev@example.com"}, msgs[0].To)

	t.Run("Missing content rejected", func(t *testing.T) {
		invalid := map[string]interface{}{
			"letter": map[string]interface{}{
				"emailInfo": map[string]interface{}{
					"subject": "s",
					"from":    "claims@example.com",
					"to":      []string{"member@example.com"},
				},
			},
		}
		resp := postJSON(t, ts.URL+"/sendletter", invalid)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
