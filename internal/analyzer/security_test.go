package analyzer

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesage/webscan/internal/scan"
)

func TestSecurityAllHeadersMissing(t *testing.T) {
	a := NewSecurity()
	page := &scan.FetchResult{
		URL:     "https://example.com",
		Headers: http.Header{},
		Body:    []byte("<html><body>hello</body></html>"),
	}

	res, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)

	assert.Len(t, res.Issues, 5)
	require.NotNil(t, res.Security)
	assert.Equal(t, 7, res.Security.ChecksPerformed)
	assert.Equal(t, 2, res.Security.ChecksPassed)
	for _, issue := range res.Issues {
		assert.Equal(t, scan.KindSecurity, issue.Source)
	}
}

func TestSecurityAllChecksPass(t *testing.T) {
	a := NewSecurity()
	h := http.Header{}
	h.Set("Strict-Transport-Security", "max-age=63072000")
	h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-XSS-Protection", "1; mode=block")
	page := &scan.FetchResult{
		URL:     "https://example.com",
		Headers: h,
		Body:    []byte("<html><body>ok</body></html>"),
	}

	res, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)

	assert.Empty(t, res.Issues)
	assert.Equal(t, 7, res.Security.ChecksPassed)
}

func TestSecurityFrameAncestorsSatisfiesFrameCheck(t *testing.T) {
	a := NewSecurity()
	h := http.Header{}
	h.Set("Content-Security-Policy", "frame-ancestors 'self'")
	page := &scan.FetchResult{URL: "https://example.com", Headers: h}

	res, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)

	for _, issue := range res.Issues {
		assert.NotEqual(t, "Missing clickjacking protection", issue.Title)
	}
}

func TestSecurityCookieScriptAndPlainHTTP(t *testing.T) {
	a := NewSecurity()
	page := &scan.FetchResult{
		URL:     "http://example.com",
		Headers: http.Header{},
		Body:    []byte(`<script>var c = document.cookie;</script>`),
	}

	res, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)

	assert.Len(t, res.Issues, 7)
	assert.Equal(t, 0, res.Security.ChecksPassed)
}
