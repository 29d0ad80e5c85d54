package politeness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWildcardDisallow(t *testing.T) {
	t.Parallel()

	m := Parse([]byte("User-agent: *\nDisallow: /private"))
	require.Equal(t, []string{"/private"}, m.Rules())
	assert.True(t, m.Match("/private/x"))
	assert.True(t, m.Match("/private"))
	assert.False(t, m.Match("/public"))
	assert.False(t, m.Match("/x/private"))
}

func TestParseOnlyWildcardAgentHonoured(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"User-agent: googlebot",
		"Disallow: /google-only",
		"",
		"User-agent: *",
		"Disallow: /everyone",
		"",
		"User-agent: polzat",
		"Disallow: /polzat-only",
	}, "\n")
	m := Parse([]byte(body))
	require.Equal(t, []string{"/everyone"}, m.Rules())
	assert.False(t, m.Match("/google-only"))
	assert.False(t, m.Match("/polzat-only"))
	assert.True(t, m.Match("/everyone/page"))
}

func TestParsePatternSyntax(t *testing.T) {
	t.Parallel()

	m := Parse([]byte("User-agent: *\nDisallow: /search?q=\nDisallow: /*.pdf\nDisallow: /a.b"))

	tests := []struct {
		path string
		want bool
	}{
		{path: "/search?q=golang", want: true},
		{path: "/searchXq=golang", want: false},
		{path: "/docs/manual.pdf", want: true},
		{path: "/manual.pdfx", want: true},
		{path: "/manual.html", want: false},
		{path: "/a.b/c", want: true},
		{path: "/aXb", want: false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, m.Match(tc.path), tc.path)
	}
}

func TestParseNoRulesMatchesNothing(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		"",
		"User-agent: *\nAllow: /",
		"User-agent: *\nDisallow:",
		"User-agent: bot\nDisallow: /",
	} {
		m := Parse([]byte(body))
		assert.Empty(t, m.Rules(), body)
		assert.False(t, m.Match("/"), body)
		assert.False(t, m.Match("*"), body)
	}
}

func TestParseToleratesMalformedContent(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"<html><body>not robots</body></html>",
		"User-agent:",
		"Disallow: /ignored-no-agent",
		":::",
		"User-agent: * # everyone",
		"disallow: /lower # trailing comment",
		"Disallow /missing-colon",
		"\x00\xff garbage",
		"DISALLOW:    /upper    extra tokens",
	}, "\n")

	require.NotPanics(t, func() {
		m := Parse([]byte(body))
		assert.Equal(t, []string{"/lower", "/upper"}, m.Rules())
		assert.False(t, m.Match("/ignored-no-agent"))
		assert.False(t, m.Match("/missing-colon"))
	})
}

func TestParseSkipsOnlyOversizedLine(t *testing.T) {
	t.Parallel()

	long := "# " + strings.Repeat("x", maxRobotsLineBytes)
	body := "User-agent: *\r\nDisallow: /before\r\n" + long + "\r\nDisallow: /secret\n"
	m := Parse([]byte(body))
	assert.Equal(t, []string{"/before", "/secret"}, m.Rules())
	assert.True(t, m.Match("/before"))
	assert.True(t, m.Match("/secret/x"))
	assert.False(t, m.Match("/public"))
}

func TestWildcardRuleBlocksPathlessURL(t *testing.T) {
	t.Parallel()

	assert.True(t, Parse([]byte("User-agent: *\nDisallow: *")).Match("*"))
	assert.False(t, Parse([]byte("User-agent: *\nDisallow: /")).Match("*"))
}

func TestNilMatcher(t *testing.T) {
	t.Parallel()

	var m *Matcher
	assert.False(t, m.Match("/anything"))
	assert.Nil(t, m.Rules())
}
