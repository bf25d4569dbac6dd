package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"character-studio/backend/internal/models"
	"character-studio/backend/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionsClientText(t *testing.T) {
	var got TextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/generate-text", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"overlays":     map[string]string{"now": "surfing", "health": "salty"},
			"suggestions":  []string{"nice!", "where?"},
			"video_scenes": []string{"a", "b", "c", "d", "e"},
		})
	}))
	defer srv.Close()

	c := NewFunctionsClient(srv.URL+"/functions/v1/", "key", time.Second, logger.Discard())
	res, err := c.GenerateText(context.Background(), TextRequest{
		Description: "beach", Mood: models.MoodHappy, SceneCount: 4, CharacterName: "Mira",
	})
	require.NoError(t, err)

	assert.Equal(t, "beach", got.Description)
	assert.Equal(t, 4, got.SceneCount)
	assert.Equal(t, "surfing", res.Overlays.Now)
	assert.Equal(t, []string{"a", "b", "c", "d"}, res.VideoScenes)
}

func TestFunctionsClientErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"model overloaded"}`))
	}))
	defer srv.Close()

	c := NewFunctionsClient(srv.URL, "", time.Second, logger.Discard())
	_, err := c.GenerateVideo(context.Background(), VideoRequest{ImageURL: "x", Scene: "y", Duration: 5})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, http.StatusBadGateway, genErr.StatusCode)
	assert.Equal(t, "generate-video failed: model overloaded", genErr.Error())
	assert.True(t, genErr.Temporary())
}

func TestFunctionsClientRejectsEmptyImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewFunctionsClient(srv.URL, "", time.Second, logger.Discard())
	_, err := c.GenerateImage(context.Background(), ImageRequest{ReferenceImageURL: "a", Scene: "b"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestProtectedOpensOnRemoteFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	fake := &Fake{TextErr: &Error{Op: "generate-text", StatusCode: 500}}
	p := NewProtected(fake, metrics, logger.Discard())

	for i := 0; i < 5; i++ {
		_, err := p.GenerateText(context.Background(), TextRequest{})
		require.Error(t, err)
	}

	_, err := p.GenerateText(context.Background(), TextRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)

	text, _, _ := fake.Calls()
	assert.Equal(t, 5, text)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("generate-text", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.breaker.WithLabelValues("generation")))
}

func TestProtectedIgnoresClientErrors(t *testing.T) {
	fake := &Fake{TextErr: &Error{Op: "generate-text", StatusCode: 400, Message: "description too long"}}
	p := NewProtected(fake, nil, logger.Discard())

	for i := 0; i < 10; i++ {
		_, err := p.GenerateText(context.Background(), TextRequest{})
		var genErr *Error
		require.True(t, errors.As(err, &genErr))
	}
}

func TestWithTextOverridesOnlyText(t *testing.T) {
	media := &Fake{Image: &ImageResult{ImageURL: "img"}}
	text := &Fake{Text: &TextResult{VideoScenes: []string{"s"}}}
	g := WithText(media, text)

	_, err := g.GenerateText(context.Background(), TextRequest{})
	require.NoError(t, err)
	_, err = g.GenerateImage(context.Background(), ImageRequest{})
	require.NoError(t, err)

	tc, _, _ := text.Calls()
	mt, mi, _ := media.Calls()
	assert.Equal(t, 1, tc)
	assert.Equal(t, 0, mt)
	assert.Equal(t, 1, mi)
}
