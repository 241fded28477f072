package content

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var videoHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
	"youtu.be":                 true,
}

// VideoID returns the YouTube video id in s. s may be a watch, short-link,
// shorts, embed or live URL, or a bare 11-character id.
func VideoID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if videoIDRe.MatchString(s) {
		return s, true
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if !videoHosts[host] {
		return "", false
	}

	var id string
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case host == "youtu.be":
		id = segments[0]
	case u.Query().Get("v") != "":
		id = u.Query().Get("v")
	case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live" || segments[0] == "v"):
		id = segments[1]
	}

	if !videoIDRe.MatchString(id) {
		return "", false
	}
	return id, true
}

// IsVideoURL reports whether s identifies a YouTube video.
func IsVideoURL(s string) bool {
	_, ok := VideoID(s)
	return ok
}

func errUnsupported(rawURL string) error {
	return errs.Newf(errs.KindContentUnavailable, "extract", "no content source configured for %s", rawURL)
}
