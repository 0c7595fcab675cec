package mangadex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medinaflav/manga-tracker/internal/source"
)

func TestFetchLatestChapter(t *testing.T) {
	tests := []struct {
		name        string
		catalogID   string
		status      int
		body        string
		wantOutcome source.Outcome
		wantChapter string
	}{
		{
			name:      "picks max across volumes",
			catalogID: "uuid-1",
			status:    http.StatusOK,
			body: `{"result":"ok","volumes":{
				"1":{"chapters":{"1":{"chapter":"1"},"2":{"chapter":"2"}}},
				"2":{"chapters":{"10.5":{"chapter":"10.5"},"10":{"chapter":"10"}}}}}`,
			wantOutcome: source.OutcomeOK,
			wantChapter: "10.5",
		},
		{
			name:        "falls back to map key when chapter field empty",
			catalogID:   "uuid-2",
			status:      http.StatusOK,
			body:        `{"result":"ok","volumes":{"1":{"chapters":{"7":{"chapter":""}}}}}`,
			wantOutcome: source.OutcomeOK,
			wantChapter: "7",
		},
		{
			name:        "unknown title",
			catalogID:   "uuid-3",
			status:      http.StatusNotFound,
			body:        `{"result":"error"}`,
			wantOutcome: source.OutcomeNotFound,
		},
		{
			name:        "server error is transient",
			catalogID:   "uuid-4",
			status:      http.StatusInternalServerError,
			body:        `oops`,
			wantOutcome: source.OutcomeTransientError,
		},
		{
			name:        "garbage body is transient",
			catalogID:   "uuid-5",
			status:      http.StatusOK,
			body:        `{{{`,
			wantOutcome: source.OutcomeTransientError,
		},
		{
			name:        "only unparsable chapters",
			catalogID:   "uuid-6",
			status:      http.StatusOK,
			body:        `{"result":"ok","volumes":{"1":{"chapters":{"none":{"chapter":"none"}}}}}`,
			wantOutcome: source.OutcomeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.URL.Path, "/manga/"+tt.catalogID+"/aggregate")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			adapter := New(Config{BaseURL: srv.URL})
			res := adapter.FetchLatestChapter(context.Background(), "ignored", tt.catalogID)

			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, SourceName, res.Source)
			if tt.wantOutcome == source.OutcomeOK {
				assert.Equal(t, tt.wantChapter, res.Chapter.String())
			}
		})
	}
}

func TestFetchLatestChapter_NoCatalogID(t *testing.T) {
	adapter := New(Config{BaseURL: "http://127.0.0.1:0"})
	res := adapter.FetchLatestChapter(context.Background(), "Some Title", "")
	assert.Equal(t, source.OutcomeNotFound, res.Outcome)
}

func TestFetchLatestChapter_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	res := adapter.FetchLatestChapter(context.Background(), "ignored", "uuid-slow")

	require.Equal(t, source.OutcomeTransientError, res.Outcome)
	assert.Error(t, res.Err)
}
