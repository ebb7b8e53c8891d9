package gamma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHTTPClient(breakerMax int) *RateLimitedHTTPClient {
	return NewRateLimitedHTTPClient(HTTPClientConfig{
		Timeout:           time.Second,
		MaxRetries:        0,
		RetryWaitMin:      time.Millisecond,
		RetryWaitMax:      time.Millisecond,
		RateLimit:         10000,
		CircuitBreakerMax: breakerMax,
	}, testLogger())
}

// deadServerURL returns a URL that refuses every connection.
func deadServerURL() string {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	return url
}

func TestHTTPClientBreakerTripsUnderConcurrentFailures(t *testing.T) {
	url := deadServerURL()
	client := testHTTPClient(5)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(context.Background(), url)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	_, err := client.Get(context.Background(), url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestHTTPClientBreakerResetsOnSuccess(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer live.Close()
	dead := deadServerURL()

	client := testHTTPClient(3)

	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), dead)
		require.Error(t, err)
	}

	resp, err := client.Get(context.Background(), live.URL)
	require.NoError(t, err)
	resp.Body.Close()

	// The success cleared the error streak; two more failures stay below
	// the threshold and surface as plain network errors
	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), dead)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "circuit breaker open")
	}

	_, err = client.Get(context.Background(), dead)
	require.Error(t, err)
	_, err = client.Get(context.Background(), dead)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}
