package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timetable-backend/config"
	"timetable-backend/internal/model"
)

func testRange(t *testing.T) model.DateRange {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	r, err := model.NewDateRange(start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	return r
}

func newTestClient(url string, timeout time.Duration) *Client {
	return NewClient(config.UpstreamConfig{
		ScheduleURL: url + "/schedule",
		SearchURL:   url + "/search",
		CheckURL:    url + "/check",
		Headers:     map[string]string{"X-App": "timetable"},
		Timeout:     timeout,
	}, zap.NewNop())
}

func TestClient_FetchSendsRangeAndReturnsBody(t *testing.T) {
	var got scheduleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/schedule", r.URL.Path)
		assert.Equal(t, "timetable", r.Header.Get("X-App"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"GetRaspGroupResult":{"RaspItem":[]}}`))
	}))
	defer server.Close()

	body, err := newTestClient(server.URL, time.Second).Fetch(context.Background(), "IT-101", testRange(t))
	require.NoError(t, err)
	assert.JSONEq(t, `{"GetRaspGroupResult":{"RaspItem":[]}}`, string(body))
	assert.Equal(t, scheduleRequest{Identity: "IT-101", Type: model.IdentityGroup, DateBegin: "01.09.2025", DateEnd: "08.09.2025"}, got)
}

func TestClient_FetchErrorKinds(t *testing.T) {
	testCases := []struct {
		name     string
		handler  http.HandlerFunc
		timeout  time.Duration
		wantKind ErrorKind
		wantCode int
	}{
		{
			name:     "non-2xx status",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantKind: KindHTTPStatus,
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "malformed body",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`<html>maintenance</html>`)) },
			wantKind: KindMalformed,
		},
		{
			name: "slow upstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			timeout:  50 * time.Millisecond,
			wantKind: KindTimeout,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			timeout := tc.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			body, err := newTestClient(server.URL, timeout).Fetch(context.Background(), "IT-101", testRange(t))
			assert.Nil(t, body)

			var ferr *FetchError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tc.wantKind, ferr.Kind)
			assert.Equal(t, tc.wantCode, ferr.Code)
		})
	}
}

func TestClient_FetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url, time.Second).Fetch(context.Background(), "IT-101", testRange(t))
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ит", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"name":"ИТ-101","type":"group"},{"name":"Итальянский Т.Т."},{"name":"  "}]`))
	}))
	defer server.Close()

	results, err := newTestClient(server.URL, time.Second).Search(context.Background(), "ит")
	require.NoError(t, err)
	assert.Equal(t, []model.SearchResult{
		{Name: "ИТ-101", Kind: model.IdentityGroup},
		{Name: "Итальянский Т.Т.", Kind: model.IdentityTeacher},
	}, results)
}

func TestClient_CheckIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("group") {
		case "IT-101":
			w.WriteHeader(http.StatusOK)
		case "ZZ-000":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL, time.Second)
	assert.NoError(t, c.CheckIdentity(context.Background(), "IT-101"))
	assert.ErrorIs(t, c.CheckIdentity(context.Background(), "ZZ-000"), ErrIdentityNotFound)
	assert.Equal(t, KindHTTPStatus, KindOf(c.CheckIdentity(context.Background(), "??")))
}
