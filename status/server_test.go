package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"starboard-bot/metrics"
	"starboard-bot/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecords map[string]*models.CuratedMessage

func (f fakeRecords) Get(_ context.Context, id string) (*models.CuratedMessage, error) {
	if id == "500" {
		return nil, errors.New("store down")
	}
	return f[id], nil
}

type fakeOverrides []models.ChannelOverride

func (f fakeOverrides) All() []models.ChannelOverride { return f }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m := metrics.New()
	m.CacheLookup(true)

	records := fakeRecords{
		"42": {ID: 1, SourceMessageID: "42", Status: models.StatusInReview, StarCount: 6, AttachmentURLs: []string{}},
	}
	return NewServer(m.Registry(), records, fakeOverrides{{ChannelID: "memes", Threshold: 2}}, logger)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/healthz").Code)

	s.SetReady(true)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	rec := get(t, newTestServer(t), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `starboard_cache_lookups_total{result="hit"} 1`))
}

func TestMessageLookup(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/starboard/messages/42")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.CuratedMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.StatusInReview, got.Status)
	assert.Equal(t, 6, got.StarCount)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/starboard/messages/7").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/starboard/messages/500").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/starboard/messages/abc").Code, "ids are numeric")
}

func TestOverrides(t *testing.T) {
	rec := get(t, newTestServer(t), "/starboard/overrides")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"channel_id":"memes","threshold":2}]`, rec.Body.String())
}
