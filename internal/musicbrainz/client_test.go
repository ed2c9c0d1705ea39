//nolint:bodyclose // Test file uses http.NoBody which doesn't require closing
package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"testing/synctest"
	"time"
)

func TestClient_RateLimit_FirstRequest(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewClient()

		start := time.Now()
		if err := c.limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		elapsed := time.Since(start)

		// First request should not wait
		if elapsed > 10*time.Millisecond {
			t.Errorf("first request waited %v, expected no wait", elapsed)
		}
	})
}

func TestClient_RateLimit_EnforcesRateLimit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewClient()
		ctx := context.Background()

		// First request
		if err := c.limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		// Immediate second request should wait ~1 second
		start := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		elapsed := time.Since(start)

		if elapsed < 900*time.Millisecond {
			t.Errorf("second request only waited %v, expected ~1s", elapsed)
		}
	})
}

func TestClient_RateLimit_MultipleRequests(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewClient()
		ctx := context.Background()

		start := time.Now()

		// Make 5 requests
		for range 5 {
			if err := c.limiter.Wait(ctx); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}

		elapsed := time.Since(start)

		// Should take at least 4 seconds (first is instant, then 4 waits of 1s each)
		if elapsed < 4*time.Second {
			t.Errorf("5 requests took %v, expected at least 4s", elapsed)
		}
	})
}

// mockTransport is a mock http.RoundTripper for testing.
type mockTransport struct {
	responses []*http.Response
	errors    []error
	callCount int
}

func (m *mockTransport) RoundTrip(*http.Request) (*http.Response, error) {
	idx := m.callCount
	m.callCount++

	if idx < len(m.errors) && m.errors[idx] != nil {
		return nil, m.errors[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return nil, errors.New("no more responses configured")
}

func newMockResponse(statusCode int) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       http.NoBody,
	}
}

func newTestClient(transport http.RoundTripper) *Client {
	c := NewClient()
	c.httpClient = &http.Client{Transport: transport}
	return c
}

func TestClient_DoRequestWithRetry_Success(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{newMockResponse(http.StatusOK)},
		}
		c := newTestClient(mock)

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if mock.callCount != 1 {
			t.Errorf("callCount = %d, want 1", mock.callCount)
		}
	})
}

func TestClient_DoRequestWithRetry_RetriesOn500(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusOK), // Success on 3rd attempt
			},
		}
		c := newTestClient(mock)

		start := time.Now()
		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if mock.callCount != 3 {
			t.Errorf("callCount = %d, want 3", mock.callCount)
		}

		// Should have waited: 2s (first retry) + 4s (second retry) = 6s minimum
		if elapsed < 6*time.Second {
			t.Errorf("elapsed = %v, expected at least 6s for backoff", elapsed)
		}
	})
}

func TestClient_DoRequestWithRetry_ExhaustsRetries(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError),
				newMockResponse(http.StatusInternalServerError), // All 4 attempts fail
			},
		}
		c := newTestClient(mock)

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)

		if err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if resp != nil {
			t.Error("expected nil response after exhausting retries")
		}
		if mock.callCount != 4 {
			t.Errorf("callCount = %d, want 4 (initial + 3 retries)", mock.callCount)
		}
	})
}

func TestClient_DoRequestWithRetry_NoRetryOn4xx(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{newMockResponse(http.StatusNotFound)},
		}
		c := newTestClient(mock)

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
		if mock.callCount != 1 {
			t.Errorf("callCount = %d, want 1 (no retry on 4xx)", mock.callCount)
		}
	})
}

func TestClient_DoRequestWithRetry_RetriesOnNetworkError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			errors: []error{
				errors.New("connection refused"),
				errors.New("timeout"),
				nil, // Success on 3rd
			},
			responses: []*http.Response{
				nil,
				nil,
				newMockResponse(http.StatusOK),
			},
		}
		c := newTestClient(mock)

		req, _ := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
		resp, err := c.doRequestWithRetry(req)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if mock.callCount != 3 {
			t.Errorf("callCount = %d, want 3", mock.callCount)
		}
	})
}

func TestClient_DoRequestWithRetry_CancelledContext(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{
			responses: []*http.Response{
				newMockResponse(http.StatusInternalServerError),
			},
		}
		c := newTestClient(mock)

		ctx, cancel := context.WithCancel(context.Background())
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com", http.NoBody)

		go func() {
			time.Sleep(500 * time.Millisecond)
			cancel()
		}()

		_, err := c.doRequestWithRetry(req)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}
