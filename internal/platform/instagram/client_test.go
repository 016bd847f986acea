package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"postdeck/internal/platform"
)

func testCredential() platform.Credential {
	return platform.Credential{Platform: platform.Instagram, AccessToken: "user-token"}
}

func TestPublish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/accounts":
			fmt.Fprint(w, `{"data":[
				{"id":"p1","access_token":"page-1-token"},
				{"id":"p2","access_token":"page-2-token","instagram_business_account":{"id":"ig-9"}}
			]}`)
		case "/ig-9/media":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "https://cdn.example.com/a.jpg", r.PostForm.Get("image_url"))
			require.Equal(t, "insta caption", r.PostForm.Get("caption"))
			require.Equal(t, "page-2-token", r.PostForm.Get("access_token"))
			fmt.Fprint(w, `{"id":"container-1"}`)
		case "/ig-9/media_publish":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "container-1", r.PostForm.Get("creation_id"))
			fmt.Fprint(w, `{"id":"media-5"}`)
		case "/media-5":
			fmt.Fprint(w, `{"id":"media-5","permalink":"https://www.instagram.com/p/XYZ/"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	result, err := client.Publish(context.Background(), testCredential(), "insta caption", "https://cdn.example.com/a.jpg")
	require.NoError(t, err)

	require.Equal(t, platform.StatusSuccess, result.Status)
	require.Equal(t, platform.ActionPostPublished, result.Action)
	require.Equal(t, "https://www.instagram.com/p/XYZ/", result.URL)
}

func TestPublishPermalinkFailureUsesPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/accounts":
			fmt.Fprint(w, `{"data":[{"id":"p1","instagram_business_account":{"id":"ig-1"}}]}`)
		case "/ig-1/media":
			fmt.Fprint(w, `{"id":"c1"}`)
		case "/ig-1/media_publish":
			fmt.Fprint(w, `{"id":"m1"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	result, err := client.Publish(context.Background(), testCredential(), "c", "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	require.Equal(t, "https://www.instagram.com/", result.URL)
}

func TestPublishRequiresMedia(t *testing.T) {
	client := NewClient()
	_, err := client.Publish(context.Background(), testCredential(), "text only", "")
	require.ErrorIs(t, err, ErrMediaRequired)
}

func TestPublishNoBusinessAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/accounts", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"id":"p1","access_token":"tok"}]}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Publish(context.Background(), testCredential(), "c", "https://cdn.example.com/a.jpg")
	require.ErrorIs(t, err, ErrNoBusinessAccount)
}

func TestPublishPageTokenFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/accounts":
			fmt.Fprint(w, `{"data":[{"id":"p1","instagram_business_account":{"id":"ig-1"}}]}`)
		case "/ig-1/media":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "user-token", r.PostForm.Get("access_token"), "page without its own token falls back to the user token")
			fmt.Fprint(w, `{"id":"c1"}`)
		case "/ig-1/media_publish":
			fmt.Fprint(w, `{"id":"m1"}`)
		case "/m1":
			fmt.Fprint(w, `{"id":"m1","permalink":"https://www.instagram.com/p/A/"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Publish(context.Background(), testCredential(), "c", "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
}
