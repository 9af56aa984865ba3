package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return New(Options{BackoffUnit: time.Millisecond})
}

func TestDoJSON_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"widget"}`))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	var payload struct {
		Name string `json:"name"`
	}
	err := c.DoJSON(context.Background(), server.URL, RequestOptions{}, &payload)

	require.NoError(t, err)
	assert.Equal(t, "widget", payload.Name)
}

func TestDoJSON_SendsHeadersAndMethod(t *testing.T) {
	var gotMethod, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	opts := RequestOptions{
		Method: http.MethodPost,
		Header: http.Header{"Authorization": []string{"Bearer secret"}},
		Body:   []byte(`{}`),
	}
	err := c.DoJSON(context.Background(), server.URL, opts, nil)

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestDoJSON_NonSuccessStatusCarriesSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	err := c.DoJSON(context.Background(), server.URL, RequestOptions{}, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Snippet, "Not Found")
}

func TestDoJSON_SnippetIsTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	err := c.DoJSON(context.Background(), server.URL, RequestOptions{}, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.LessOrEqual(t, len(statusErr.Snippet), 500)
}

func TestDoJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	var payload map[string]any
	err := c.DoJSON(context.Background(), server.URL, RequestOptions{}, &payload)

	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestDoJSON_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1024)))
	}))
	defer server.Close()

	c := New(Options{MaxResponseBytes: 512, BackoffUnit: time.Millisecond})
	defer c.Close()

	err := c.DoJSON(context.Background(), server.URL, RequestOptions{}, nil)

	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestDoJSON_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	err := c.DoJSON(context.Background(), server.URL, RequestOptions{Timeout: 20 * time.Millisecond}, nil)

	assert.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoJSONWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	var payload struct {
		OK bool `json:"ok"`
	}
	err := c.DoJSONWithRetry(context.Background(), server.URL, RequestOptions{}, &payload, 2)

	require.NoError(t, err)
	assert.True(t, payload.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoJSONWithRetry_ReturnsLastErrorWhenExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	err := c.DoJSONWithRetry(context.Background(), server.URL, RequestOptions{}, nil, 2)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoJSONWithRetry_DoesNotRetryMalformedResponses(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	var payload map[string]any
	err := c.DoJSONWithRetry(context.Background(), server.URL, RequestOptions{}, &payload, 2)

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoJSONWithRetry_StopsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Options{BackoffUnit: time.Minute})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.DoJSONWithRetry(ctx, server.URL, RequestOptions{}, nil, 2)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedactURL(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "access token masked",
			url:      "https://gitee.com/api/v5/repos/a/b/issues?access_token=secret&page=1",
			expected: "https://gitee.com/api/v5/repos/a/b/issues?access_token=REDACTED&page=1",
		},
		{
			name:     "private token masked",
			url:      "https://gitlab.com/api/v4/projects/a%2Fb/issues?private_token=secret",
			expected: "https://gitlab.com/api/v4/projects/a%2Fb/issues?private_token=REDACTED",
		},
		{
			name:     "no sensitive parameters untouched",
			url:      "https://api.github.com/repos/a/b/issues?page=2&per_page=50",
			expected: "https://api.github.com/repos/a/b/issues?page=2&per_page=50",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := url.Parse(tc.url)
			require.NoError(t, err)

			assert.Equal(t, tc.expected, RedactURL(u))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(errors.New("connection reset")))
	assert.True(t, retryable(&StatusError{StatusCode: 500, Status: "500 Internal Server Error"}))
	assert.False(t, retryable(ErrResponseTooLarge))
	assert.False(t, retryable(&MalformedResponseError{cause: errors.New("bad json")}))
}
