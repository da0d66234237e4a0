package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single-quoted header",
			curlCmd:     `curl -H 'Authorization: Bearer token123' https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token123"},
		},
		{
			name:        "double-quoted header",
			curlCmd:     `curl -H "Authorization: Bearer token123" https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token123"},
		},
		{
			name:    "multiple headers",
			curlCmd: `curl -H 'Content-Type: application/json' -H 'Authorization: Bearer token' https://api.example.com`,
			wantHeaders: map[string]string{
				"Content-Type":  "application/json",
				"Authorization": "Bearer token",
			},
		},
		{
			name:        "cookie via -b",
			curlCmd:     `curl -b 'session=abc123' https://api.example.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "session=abc123",
		},
		{
			name:        "cookie via header is pulled out of the header map",
			curlCmd:     `curl -H 'Cookie: session=abc123' -H 'Authorization: Bearer token' https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token"},
			wantCookie:  "session=abc123",
		},
		{
			name:        "-b wins over a Cookie header",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://api.example.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name: "multiline command with continuations",
			curlCmd: `curl -H 'Authorization: Bearer token' \
-H 'Content-Type: application/json' \
https://api.example.com`,
			wantHeaders: map[string]string{
				"Authorization": "Bearer token",
				"Content-Type":  "application/json",
			},
		},
		{
			name:        "spaces around the colon are trimmed",
			curlCmd:     `curl -H 'Authorization : Bearer token' https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token"},
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://api.example.com`,
			wantErr: true,
		},
		{
			name:    "empty command",
			curlCmd: "",
			wantErr: true,
		},
		{
			name: "devtools copy of a music.youtube.com request",
			curlCmd: `curl 'https://music.youtube.com/api' \
  -H 'accept: */*' \
  -H 'accept-language: en-US,en;q=0.9' \
  -H 'authorization: SAPISIDHASH token_here' \
  -H 'content-type: application/json' \
  -H 'cookie: VISITOR_INFO=xyz; CONSENT=YES' \
  --data-raw '{"context":{}}'`,
			wantHeaders: map[string]string{
				"accept":          "*/*",
				"accept-language": "en-US,en;q=0.9",
				"authorization":   "SAPISIDHASH token_here",
				"content-type":    "application/json",
			},
			wantCookie: "VISITOR_INFO=xyz; CONSENT=YES",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand(tc.curlCmd)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseCurlCommand() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}

			if len(result.Headers) != len(tc.wantHeaders) {
				t.Errorf("headers count = %d, want %d", len(result.Headers), len(tc.wantHeaders))
			}
			for key, want := range tc.wantHeaders {
				if got := result.Headers[key]; got != want {
					t.Errorf("header[%s] = %q, want %q", key, got, want)
				}
			}
			if result.Cookie != tc.wantCookie {
				t.Errorf("cookie = %q, want %q", result.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestParseCurlFile(t *testing.T) {
	t.Run("reads and parses the file", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "curl.sh")
		curlCmd := `curl -H 'Authorization: Bearer token123' -H 'Content-Type: application/json' https://api.example.com`
		if err := os.WriteFile(curlFile, []byte(curlCmd), 0644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}

		result, err := ParseCurlFile(curlFile)
		if err != nil {
			t.Fatalf("ParseCurlFile() error = %v", err)
		}
		if len(result.Headers) != 2 {
			t.Errorf("headers count = %d, want 2", len(result.Headers))
		}
		if result.Headers["Authorization"] != "Bearer token123" {
			t.Errorf("Authorization = %q", result.Headers["Authorization"])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ParseCurlFile("/nonexistent/file.sh"); err == nil {
			t.Error("expected error for nonexistent file")
		}
	})

	t.Run("file without headers", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "invalid.sh")
		if err := os.WriteFile(curlFile, []byte("curl https://example.com"), 0644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}
		if _, err := ParseCurlFile(curlFile); err == nil {
			t.Error("expected error for file with no headers")
		}
	})
}

func TestToHeadersRaw(t *testing.T) {
	t.Run("headers sorted, cookie last", func(t *testing.T) {
		headers := &CurlHeaders{
			Headers: map[string]string{
				"content-type":  "application/json",
				"authorization": "SAPISIDHASH token",
			},
			Cookie: "session=abc123",
		}

		want := "authorization: SAPISIDHASH token\ncontent-type: application/json\ncookie: session=abc123"
		if got := headers.ToHeadersRaw(); got != want {
			t.Errorf("ToHeadersRaw() = %q, want %q", got, want)
		}
	})

	t.Run("cookie only", func(t *testing.T) {
		headers := &CurlHeaders{Headers: map[string]string{}, Cookie: "session=abc123"}
		if got := headers.ToHeadersRaw(); got != "cookie: session=abc123" {
			t.Errorf("ToHeadersRaw() = %q", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		headers := &CurlHeaders{Headers: map[string]string{}}
		if got := headers.ToHeadersRaw(); got != "" {
			t.Errorf("ToHeadersRaw() = %q, want empty", got)
		}
	})
}
