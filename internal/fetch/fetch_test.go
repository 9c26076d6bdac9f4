package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

func TestFetchSendsUserAgentAndCapsBody(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 10, UserAgent: "test-agent"})
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "test-agent", gotUA)
	require.Len(t, body, 10)
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	require.True(t, errors.Is(err, appErr.ErrFetch))
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	require.True(t, errors.Is(err, appErr.ErrFetch))
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("  https://acme.example  ")
	require.NoError(t, err)
	require.Equal(t, "https://acme.example", got)

	for _, raw := range []string{"", "ftp://acme.example", "acme.example", "https://"} {
		_, err := NormalizeURL(raw)
		require.True(t, appErr.IsInvalid(err), raw)
	}
}
