// Utilities for lifting request headers out of a DevTools "Copy as
// cURL" command. YouTube Music has no OAuth surface; the proxy
// authenticates with the browser's own headers instead.
package shared

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// CurlHeaders holds the headers and cookie string parsed from a cURL
// command. The cookie is kept separate because ytmusicapi expects it as
// the final "cookie:" line of headers_raw.
type CurlHeaders struct {
	Headers map[string]string
	Cookie  string
}

var (
	curlHeaderFlag = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieFlag = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
)

// ParseCurlFile reads a shell file containing a cURL command and parses
// its headers.
func ParseCurlFile(path string) (*CurlHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(string(content))
}

// ParseCurlCommand extracts every -H header and the cookie (from -b or
// a Cookie header, -b winning) out of a cURL command. Line
// continuations are joined before matching.
func ParseCurlCommand(curlCmd string) (*CurlHeaders, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	parsed := &CurlHeaders{Headers: make(map[string]string)}

	for _, match := range curlHeaderFlag.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if strings.EqualFold(key, "cookie") {
			if parsed.Cookie == "" {
				parsed.Cookie = value
			}
			continue
		}
		parsed.Headers[key] = value
	}

	if match := curlCookieFlag.FindStringSubmatch(curlCmd); match != nil {
		parsed.Cookie = firstGroup(match)
	}

	if len(parsed.Headers) == 0 && parsed.Cookie == "" {
		return nil, fmt.Errorf("no headers found in curl command")
	}
	return parsed, nil
}

// firstGroup returns whichever quote-style capture group matched.
func firstGroup(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}

// ToHeadersRaw renders the headers in ytmusicapi's headers_raw format:
// newline-separated "Key: Value" lines, cookie last. Keys are sorted so
// the stored blob is stable across re-uploads.
func (c *CurlHeaders) ToHeadersRaw() string {
	keys := make([]string, 0, len(c.Headers))
	for key := range c.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", key, c.Headers[key]))
	}
	if c.Cookie != "" {
		lines = append(lines, fmt.Sprintf("cookie: %s", c.Cookie))
	}
	return strings.Join(lines, "\n")
}
