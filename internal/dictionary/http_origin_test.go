package dictionary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/wordsync/internal/apperrors"
)

func newTestOrigin(url string, attempts int) *HTTPOrigin {
	return NewHTTPOrigin(HTTPOriginConfig{
		BaseURL:          url,
		Timeout:          2 * time.Second,
		IndexMaxAttempts: attempts,
		BaseBackoff:      time.Millisecond,
		Logger:           zerolog.Nop(),
	})
}

func TestHTTPOrigin_FetchWord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dictionary/apple.json":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"word":"apple","pronunciation":"ˈæp.əl","concise_definition":"a fruit","synonyms":["pome"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	origin := newTestOrigin(server.URL, 1)

	record, err := origin.FetchWord(context.Background(), "  Apple ")
	require.NoError(t, err)
	assert.Equal(t, "apple", record.Word)
	assert.Equal(t, "a fruit", record.ConciseDefinition)
	assert.Equal(t, []string{"pome"}, record.Synonyms)

	_, err = origin.FetchWord(context.Background(), "pear")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = origin.FetchWord(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestHTTPOrigin_FetchWordServerErrorIsMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestOrigin(server.URL, 1).FetchWord(context.Background(), "apple")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHTTPOrigin_FetchIndexRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"words":[{"word":"apple","definition":"a fruit"}]}`))
	}))
	defer server.Close()

	index, err := newTestOrigin(server.URL, 3).FetchIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, index.TotalWords)
	assert.Equal(t, "a fruit", index.Words[0].ConciseDefinition)
}

func TestHTTPOrigin_FetchIndexGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestOrigin(server.URL, 2).FetchIndex(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrRemoteFailure)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPOrigin_FetchIndexDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestOrigin(server.URL, 5).FetchIndex(context.Background())
	assert.Error(t, err)
	assert.True(t, apperrors.IsIrrecoverable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "apple", Normalize("  APPLE\t"))
	assert.Equal(t, "", Normalize("   "))
}
