package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagdown/pkg/config"
	"tagdown/pkg/errors"
	"tagdown/pkg/logger"
)

// newTestClient points every provider host at the given test server
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	return NewClient(config.UpstreamConfig{
		APIKey:            "test-key",
		Timeout:           5 * time.Second,
		InstagramHost:     server.URL,
		InstagramPostHost: server.URL,
		TikTokHost:        server.URL,
	}, logger.NewTestLogger())
}

func TestInstagramProfilePassThrough(t *testing.T) {
	const payload = `{"username":"natgeo","follower_count":283000000}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, instagramProfilePath, r.URL.Path)
		assert.Equal(t, "natgeo", r.URL.Query().Get("username_or_id"))
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))
		assert.NotEmpty(t, r.Header.Get("x-rapidapi-host"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.InstagramProfile(context.Background(), "natgeo")
	require.NoError(t, err)

	assert.True(t, result.OK())
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, payload, string(result.Body), "body passes through verbatim")
}

func TestInstagramPostDownloadQuery(t *testing.T) {
	const postURL = "https://www.instagram.com/p/abc123/"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, instagramPostDLPath, r.URL.Path)
		assert.Equal(t, postURL, r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"links":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.InstagramPostDownload(context.Background(), postURL)
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestTikTokVideoHDParameter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("hd"))
		assert.Equal(t, "https://www.tiktok.com/@x/video/1", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.TikTokVideo(context.Background(), "https://www.tiktok.com/@x/video/1")
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestUpstreamErrorStatusPropagates(t *testing.T) {
	const errBody = `{"message":"user not found"}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(errBody))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.InstagramPostInfo(context.Background(), "https://www.instagram.com/p/gone/")
	require.NoError(t, err, "non-2xx is a result, not an error")

	assert.False(t, result.OK())
	assert.Equal(t, http.StatusNotFound, result.Status)
	assert.Equal(t, errBody, string(result.Body))
}

func TestNetworkErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(t, server)
	_, err := client.InstagramPosts(context.Background(), "natgeo")
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeNetwork, apiErr.Type)
}

func TestContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(t, server)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := client.InstagramProfile(ctx, "natgeo")
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not stop after cancellation")
	}
}
