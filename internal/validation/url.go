package validation

import (
	"net/url"
	"strings"
)

// Scheme aliases seen in the wild for podcast feeds.
var schemeAliases = map[string]string{
	"feed": "http",
	"itpc": "http",
	"itms": "https",
}

// NormalizeFeedURL cleans up a user-entered feed URL. Returns the empty
// string when the URL cannot be used as a subscription target.
func NormalizeFeedURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	// Qualify bare hostnames ("example.com/feed")
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if alias, ok := schemeAliases[scheme]; ok {
		scheme = alias
	}
	if scheme != "http" && scheme != "https" {
		return ""
	}
	u.Scheme = scheme

	if u.Host == "" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// URLAddAuthentication inserts the given credentials into the URL. An empty
// username leaves the URL untouched.
func URLAddAuthentication(rawURL, username, password string) string {
	if username == "" {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if password == "" {
		u.User = url.User(username)
	} else {
		u.User = url.UserPassword(username, password)
	}

	return u.String()
}
