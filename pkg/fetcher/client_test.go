package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "feedmirror-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://www.bilibili.com/", r.Header.Get("Referer"))
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpegbytes"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, "feedmirror-test", logger.NewNopLogger())
	client.SetHeader("Referer", "https://www.bilibili.com/")

	body, err := client.Fetch(context.Background(), server.URL+"/a.jpg")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
}

func TestFetchStatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		wantType  errs.ErrorType
		retryable bool
	}{
		{http.StatusNotFound, errs.ErrorTypeNotFound, false},
		{http.StatusForbidden, errs.ErrorTypeAuth, false},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit, true},
		{http.StatusBadGateway, errs.ErrorTypeServerError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(5*time.Second, "", logger.NewNopLogger())
			body, err := client.Fetch(context.Background(), server.URL)

			require.Error(t, err)
			assert.Nil(t, body)
			assert.Equal(t, tt.wantType, errs.TypeOf(err))
			assert.Equal(t, tt.retryable, errs.IsRetryable(errs.TypeOf(err)))
		})
	}
}

func TestFetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(time.Second, "", logger.NewNopLogger())
	_, err := client.Fetch(context.Background(), url)

	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestFetchInvalidLocator(t *testing.T) {
	client := NewClient(time.Second, "", logger.NewNopLogger())
	_, err := client.Fetch(context.Background(), "://bad")

	require.Error(t, err)
	assert.False(t, errs.IsRetryable(errs.TypeOf(err)))
}

func TestFetchTruncatedBodyIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("short"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, "", logger.NewNopLogger())
	body, err := client.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	defer body.Close()

	_, err = io.ReadAll(body)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}
