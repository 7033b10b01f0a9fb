// Package linkid normalizes captured short-video links and derives the
// deterministic identities the pipeline dedups on.
package linkid

import (
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

var ErrMissingURL = errors.New("missing url")

// Well-known host aliases. Key: input host. Value: canonical domain.
//
// Short-link hosts (vm.tiktok.com, youtu.be) are only aliased when the video
// id can be recovered from the link itself.
var canonicalDomainByHost = map[string]string{
	"tiktok.com":     "tiktok.com",
	"www.tiktok.com": "tiktok.com",
	"m.tiktok.com":   "tiktok.com",

	"vm.tiktok.com": "vm.tiktok.com",
	"vt.tiktok.com": "vm.tiktok.com",

	"youtube.com":     "youtube.com",
	"www.youtube.com": "youtube.com",
	"m.youtube.com":   "youtube.com",
	"youtu.be":        "youtube.com",

	"instagram.com":     "instagram.com",
	"www.instagram.com": "instagram.com",

	"x.com":           "x.com",
	"www.x.com":       "x.com",
	"twitter.com":     "x.com",
	"www.twitter.com": "x.com",
}

// namespaceRoot scopes every identity minted by this package.
var namespaceRoot = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://haul.thirdcoast.systems/ids"))

// ResolveCanonicalDomain returns the canonical domain for host.
func ResolveCanonicalDomain(host string) string {
	h := normalizeHost(host)
	if h == "" {
		return ""
	}
	if c, ok := canonicalDomainByHost[h]; ok {
		return c
	}
	return h
}

// NormalizeSourceURL normalizes a captured link for storage and dedup. It
// returns the normalized URL and its canonical domain.
//
// Known short-video hosts lose their query string (share trackers, timestamps);
// YouTube keeps only v=. Unknown hosts keep their query but lose the fragment.
func NormalizeSourceURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ErrMissingURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return "", "", err
		}
	}
	if u.Host == "" {
		return "", "", errors.New("url has no host")
	}

	u.Fragment = ""
	u.User = nil

	canon := ResolveCanonicalDomain(u.Host)

	youtubeID := ""
	if canon == "youtube.com" {
		youtubeID = extractYouTubeVideoID(u)
	}

	u.Host = canon
	if u.Scheme == "http" || u.Scheme == "https" {
		u.Scheme = "https"
	}
	u.Path = trimTrailingSlash(u.Path)

	switch canon {
	case "youtube.com":
		if youtubeID != "" {
			u.Path = "/watch"
			u.RawQuery = "v=" + url.QueryEscape(youtubeID)
		}
	case "tiktok.com", "vm.tiktok.com", "instagram.com", "x.com":
		u.RawQuery = ""
	}

	return u.String(), canon, nil
}

// DeviceNamespace is the UUIDv5 namespace for everything owned by one device.
func DeviceNamespace(deviceID string) uuid.UUID {
	return uuid.NewSHA1(namespaceRoot, []byte(strings.TrimSpace(deviceID)))
}

// JobIdentity returns the broker job id for a capture. Equal inputs always
// yield the same id.
func JobIdentity(deviceID, normalizedURL string) string {
	return uuid.NewSHA1(DeviceNamespace(deviceID), []byte("capture:"+strings.TrimSpace(normalizedURL))).String()
}

// ProductID returns the stable product id for a name inside a category.
func ProductID(categoryID uuid.UUID, name string) uuid.UUID {
	return uuid.NewSHA1(categoryID, []byte(FoldName(name)))
}

// FoldName is the comparison key for category and product names: trimmed,
// inner whitespace collapsed, Unicode case-folded.
func FoldName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

func extractYouTubeVideoID(u *url.URL) string {
	host := normalizeHost(u.Host)
	if host == "youtu.be" {
		return firstPathSegment(u.Path)
	}
	if v := strings.TrimSpace(u.Query().Get("v")); v != "" {
		return v
	}
	for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
		if strings.HasPrefix(u.Path, prefix) {
			return firstPathSegment(strings.TrimPrefix(u.Path, prefix))
		}
	}
	return ""
}

func normalizeHost(hostport string) string {
	h := strings.TrimSpace(strings.ToLower(hostport))
	if h == "" {
		return ""
	}
	// url.URL.Host may include port.
	if strings.Contains(h, ":") {
		if parsed, err := url.Parse("//" + h); err == nil && parsed.Hostname() != "" {
			h = parsed.Hostname()
		}
	}
	return strings.TrimSuffix(h, ".")
}

func trimTrailingSlash(p string) string {
	if p == "" || p == "/" {
		return p
	}
	return strings.TrimRight(p, "/")
}

func firstPathSegment(p string) string {
	p = strings.TrimPrefix(strings.TrimSpace(p), "/")
	seg, _, _ := strings.Cut(p, "/")
	return strings.TrimSpace(seg)
}
