package captions

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"postdeck/internal/platform"
)

func TestOptimizeNonTwitterPassthrough(t *testing.T) {
	caption := "  Launch day! #go #backend #api #devops  "
	for _, p := range []platform.Platform{platform.LinkedIn, platform.Facebook, platform.Instagram} {
		require.Equal(t, "Launch day! #go #backend #api #devops", Optimize(p, caption), "platform %s", p)
	}
}

func TestOptimizeTwitterDropsExtraHashtags(t *testing.T) {
	got := Optimize(platform.Twitter, "Launch day! #go #backend #api #devops")
	require.Equal(t, "Launch day! #go #backend #api", got)
	require.Equal(t, 3, strings.Count(got, "#"))
}

func TestOptimizeTwitterKeepsThreeHashtags(t *testing.T) {
	caption := "Short update #one #two #three"
	require.Equal(t, caption, Optimize(platform.Twitter, caption))
}

func TestOptimizeTwitterTrimsOnWordBoundary(t *testing.T) {
	caption := strings.Repeat("word ", 80) // 400 chars
	got := Optimize(platform.Twitter, caption)
	require.LessOrEqual(t, len(got), 260)
	require.False(t, strings.HasSuffix(got, " "))
	require.True(t, strings.HasSuffix(got, "word"))
}

func TestOptimizeTwitterTrimsMultibyteOnRuneBoundary(t *testing.T) {
	// No spaces: the trim has no word boundary to fall back to, so the cut
	// itself must land on a rune boundary.
	caption := strings.Repeat("世", 300)
	got := Optimize(platform.Twitter, caption)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, 260, utf8.RuneCountInString(got))
}

func TestOptimizeTwitterCountsCharactersNotBytes(t *testing.T) {
	// 250 CJK characters are 750 bytes but within the character budget.
	caption := strings.Repeat("世", 250)
	require.Equal(t, caption, Optimize(platform.Twitter, caption))

	words := strings.Repeat("héllo ", 60) // 360 chars, word boundaries
	got := Optimize(platform.Twitter, words)
	require.True(t, utf8.ValidString(got))
	require.LessOrEqual(t, utf8.RuneCountInString(got), 260)
	require.True(t, strings.HasSuffix(got, "héllo"))
}

func TestOptimizeTwitterLoneHashNotCounted(t *testing.T) {
	caption := "numbers # one #a #b #c"
	require.Equal(t, caption, Optimize(platform.Twitter, caption))
}
