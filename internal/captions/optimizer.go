// Package captions adapts one caption to each platform's conventions before
// publishing.
package captions

import (
	"strings"
	"unicode/utf8"

	"postdeck/internal/platform"
)

const (
	twitterMaxLength   = 260
	twitterMaxHashtags = 3
)

// Optimize returns the caption adjusted for the given platform. LinkedIn,
// Facebook and Instagram preserve the caption's structure; Twitter gets a
// hashtag budget and a length trim.
func Optimize(p platform.Platform, caption string) string {
	caption = strings.TrimSpace(caption)
	if p != platform.Twitter {
		return caption
	}
	return optimizeForTwitter(caption)
}

// optimizeForTwitter keeps at most three hashtags and trims the result to
// 260 characters on a word boundary.
func optimizeForTwitter(caption string) string {
	fields := strings.Fields(caption)
	kept := make([]string, 0, len(fields))
	hashtags := 0
	for _, f := range fields {
		if strings.HasPrefix(f, "#") && len(f) > 1 {
			hashtags++
			if hashtags > twitterMaxHashtags {
				continue
			}
		}
		kept = append(kept, f)
	}

	out := strings.Join(kept, " ")
	if utf8.RuneCountInString(out) <= twitterMaxLength {
		return out
	}

	cut := truncateRunes(out, twitterMaxLength)
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

// truncateRunes cuts s after n runes. The length budget is counted in
// characters, not bytes, so multibyte captions keep their full allowance
// and the cut never splits a rune.
func truncateRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
