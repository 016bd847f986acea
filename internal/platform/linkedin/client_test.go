package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"postdeck/internal/platform"
)

type stubFetcher struct {
	data []byte
	err  error
}

func (f *stubFetcher) Fetch(context.Context, string) ([]byte, string, error) {
	return f.data, "image/png", f.err
}

func testCredential() platform.Credential {
	return platform.Credential{Platform: platform.LinkedIn, AccessToken: "bearer-token"}
}

func TestPublishTextOnly(t *testing.T) {
	var postBody ugcPostRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer bearer-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v2/userinfo":
			fmt.Fprint(w, `{"sub":"abc123","name":"Some One"}`)
		case "/v2/ugcPosts":
			require.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&postBody))
			fmt.Fprint(w, `{"id":"urn:li:share:555"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(&stubFetcher{}, WithBaseURL(server.URL))
	result, err := client.Publish(context.Background(), testCredential(), "hello network", "")
	require.NoError(t, err)

	require.Equal(t, platform.StatusSuccess, result.Status)
	require.Equal(t, platform.ActionPostPublished, result.Action)
	require.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:555/", result.URL)

	require.Equal(t, "urn:li:person:abc123", postBody.Author)
	require.Equal(t, "hello network", postBody.SpecificContent.ShareContent.ShareCommentary.Text)
	require.Equal(t, "NONE", postBody.SpecificContent.ShareContent.ShareMediaCategory)
	require.Empty(t, postBody.SpecificContent.ShareContent.Media)
	require.Equal(t, "PUBLIC", postBody.Visibility.MemberNetworkVisibility)
}

func TestPublishWithImage(t *testing.T) {
	imageBytes := []byte("png-bytes")
	var uploadedBytes []byte
	var postBody ugcPostRequest

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v2/userinfo":
			fmt.Fprint(w, `{"sub":"abc123"}`)
		case r.URL.Path == "/v2/assets" && r.URL.Query().Get("action") == "registerUpload":
			var reg registerUploadRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
			require.Equal(t, "urn:li:person:abc123", reg.RegisterUploadRequest.Owner)
			fmt.Fprintf(w, `{"value":{"asset":"urn:li:digitalmediaAsset:42","uploadMechanism":{"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest":{"uploadUrl":%q}}}}`,
				server.URL+"/upload-slot")
		case r.URL.Path == "/upload-slot":
			require.Equal(t, http.MethodPut, r.Method)
			var err error
			uploadedBytes, err = io.ReadAll(r.Body)
			require.NoError(t, err)
			w.WriteHeader(http.StatusCreated)
		case r.URL.Path == "/v2/ugcPosts":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&postBody))
			fmt.Fprint(w, `{"id":"urn:li:share:777"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
	}))
	defer server.Close()

	client := NewClient(&stubFetcher{data: imageBytes}, WithBaseURL(server.URL))
	result, err := client.Publish(context.Background(), testCredential(), "with pic", "https://cdn.example.com/a.png")
	require.NoError(t, err)

	require.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:777/", result.URL)
	require.Equal(t, imageBytes, uploadedBytes)
	require.Equal(t, "IMAGE", postBody.SpecificContent.ShareContent.ShareMediaCategory)
	require.Len(t, postBody.SpecificContent.ShareContent.Media, 1)
	require.Equal(t, "urn:li:digitalmediaAsset:42", postBody.SpecificContent.ShareContent.Media[0].Media)
}

func TestPublishProfileFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"token revoked"}`)
	}))
	defer server.Close()

	client := NewClient(&stubFetcher{}, WithBaseURL(server.URL))
	_, err := client.Publish(context.Background(), testCredential(), "hi", "")
	require.ErrorContains(t, err, "fetch profile")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestShareDialogResult(t *testing.T) {
	result := ShareDialogResult("caption here", "https://cdn.example.com/a.png")
	require.True(t, result.Succeeded())
	require.Equal(t, platform.ActionShareDialog, result.Action)
	require.Contains(t, result.URL, "shareActive=true")
	require.Contains(t, result.URL, "caption+here+https%3A%2F%2Fcdn.example.com%2Fa.png")
	require.Equal(t, "caption here", result.OptimizedCaption)
}
