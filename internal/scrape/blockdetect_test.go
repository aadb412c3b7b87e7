package scrape

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cf header 403", 403, http.Header{"Cf-Ray": {"abc"}}, "", BlockCloudflare},
		{"cf server 503", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"cf challenge body", 200, http.Header{}, "Cloudflare challenge in progress", BlockCloudflare},
		{"captcha", 200, http.Header{}, "Please complete the reCAPTCHA", BlockCaptcha},
		{"js shell", 200, http.Header{}, `<noscript>Enable JavaScript</noscript>`, BlockJSShell},
		{"meta refresh", 200, http.Header{}, `<meta http-equiv="refresh" content="0;url=/x">`, BlockJSShell},
		{"plain page", 200, http.Header{}, "<p>Careers at Acme</p>", BlockNone},
		{"403 without cf", 403, http.Header{}, "forbidden", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, kind := DetectBlock(&http.Response{StatusCode: tt.status, Header: tt.header}, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, kind)
		})
	}

	blocked, _ := DetectBlock(nil, nil)
	assert.False(t, blocked)
}
