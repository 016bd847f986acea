// Package oauth1 implements OAuth 1.0a HMAC-SHA1 request signing (RFC 5849).
//
// The construction must match the verifier on the platform side byte for
// byte; there is no partial-credit failure mode for a signature.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Credentials holds the two key pairs involved in signing. Token and
// TokenSecret are empty during the request-token leg of the three-legged
// flow.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Signer produces Authorization headers. Nonce and Clock are injectable so
// tests can verify the exact signature output.
type Signer struct {
	Nonce func() string
	Clock func() time.Time
}

// NewSigner returns a Signer using crypto/rand nonces and the wall clock.
func NewSigner() *Signer {
	return &Signer{
		Nonce: randomNonce,
		Clock: time.Now,
	}
}

func randomNonce() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("oauth1: nonce entropy unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}

// AuthorizationHeader signs a request and returns the OAuth Authorization
// header value. params must contain every request parameter that is part of
// the signature: query-string parameters and form-encoded body parameters.
func (s *Signer) AuthorizationHeader(method, rawurl string, params map[string]string, creds Credentials) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("oauth1: invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("oauth1: url must be absolute: %s", rawurl)
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_nonce":            s.Nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.Clock().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if creds.Token != "" {
		oauthParams["oauth_token"] = creds.Token
	}

	// Signature base parameters: request params, query params and oauth
	// params, percent-encoded and byte-sorted.
	all := make([]pair, 0, len(params)+len(oauthParams)+4)
	for k, v := range params {
		all = append(all, pair{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			all = append(all, pair{percentEncode(k), percentEncode(v)})
		}
	}
	for k, v := range oauthParams {
		all = append(all, pair{percentEncode(k), percentEncode(v)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].key != all[j].key {
			return all[i].key < all[j].key
		}
		return all[i].value < all[j].value
	})

	encoded := make([]string, len(all))
	for i, p := range all {
		encoded[i] = p.key + "=" + p.value
	}
	paramString := strings.Join(encoded, "&")

	baseString := strings.ToUpper(method) + "&" + percentEncode(baseURI(u)) + "&" + percentEncode(paramString)
	signingKey := percentEncode(creds.ConsumerSecret) + "&" + percentEncode(creds.TokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(baseString))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// Header parameters in alphabetical order.
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + percentEncode(oauthParams[k]) + `"`
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

type pair struct {
	key   string
	value string
}

// baseURI normalizes the URL for the signature base string: lowercase
// scheme and host, default ports elided, query stripped.
func baseURI(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host + u.EscapedPath()
}

const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// percentEncode implements RFC 3986 percent-encoding as required by
// RFC 5849 §3.6 (uppercase hex, '~' untouched, space as %20).
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(unreserved, c) >= 0 {
			b.WriteByte(c)
		} else {
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}
