package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateCaption(t *testing.T) {
	var gotRequest chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  Fresh coffee, fresh code. ☕  "}}]}`)
	}))
	defer server.Close()

	c := NewCaptioner(Config{APIURL: server.URL, APIKey: "key-1", Model: "gpt-4o-mini"})
	caption, err := c.GenerateCaption(context.Background(), "a post about morning coffee")
	require.NoError(t, err)
	require.Equal(t, "Fresh coffee, fresh code. ☕", caption)

	require.Equal(t, "gpt-4o-mini", gotRequest.Model)
	require.Len(t, gotRequest.Messages, 2)
	require.Equal(t, "system", gotRequest.Messages[0].Role)
	require.Equal(t, "a post about morning coffee", gotRequest.Messages[1].Content)
}

func TestGenerateCaptionValidation(t *testing.T) {
	c := NewCaptioner(Config{Model: ""})
	_, err := c.GenerateCaption(context.Background(), "prompt")
	require.ErrorContains(t, err, "model")

	c = NewCaptioner(Config{Model: "m"})
	_, err = c.GenerateCaption(context.Background(), "   ")
	require.ErrorContains(t, err, "prompt")
}

func TestGenerateCaptionUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit"}}`)
	}))
	defer server.Close()

	c := NewCaptioner(Config{APIURL: server.URL, Model: "m"})
	_, err := c.GenerateCaption(context.Background(), "prompt")
	require.ErrorContains(t, err, "unexpected status")
}

func TestGenerateCaptionEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	c := NewCaptioner(Config{APIURL: server.URL, Model: "m"})
	_, err := c.GenerateCaption(context.Background(), "prompt")
	require.ErrorContains(t, err, "empty completion")
}
