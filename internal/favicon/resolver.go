// Package favicon holds the domain types and the icon-candidate discovery
// heuristic shared by the resolution pipeline.
package favicon

import (
	"net/url"
	"regexp"
	"strings"
)

// Well-known root paths probed unconditionally for every cold resolution.
var wellKnownPaths = []string{
	"/favicon.ico",
	"/apple-touch-icon.png",
	"/apple-touch-icon-precomposed.png",
}

// WellKnownCandidates returns the fixed candidates rooted at rootURL.
func WellKnownCandidates(rootURL string) []Candidate {
	origin := strings.TrimRight(rootURL, "/")
	out := make([]Candidate, 0, len(wellKnownPaths))
	for _, p := range wellKnownPaths {
		out = append(out, Candidate{URL: origin + p})
	}
	return out
}

// The scan is a tolerant pattern matcher, not a conforming HTML parser.
// Target sites routinely serve malformed markup that a strict parser would
// choke on; a regexp sweep over tag text degrades gracefully instead.
var (
	linkTagRe = regexp.MustCompile(`(?is)<link\b[^>]*>`)
	metaTagRe = regexp.MustCompile(`(?is)<meta\b[^>]*>`)

	relAttrRe     = regexp.MustCompile(`(?i)\brel\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	hrefAttrRe    = regexp.MustCompile(`(?i)\bhref\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	nameAttrRe    = regexp.MustCompile(`(?i)\bname\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	contentAttrRe = regexp.MustCompile(`(?i)\bcontent\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
)

// ResolveCandidates scans html for icon references and returns candidates in
// document order. Link elements whose rel contains "icon" contribute one
// candidate each; an msapplication tile image, if present, contributes one
// trailing candidate carrying the tile color as BackgroundColor. Malformed
// input never fails; it just yields fewer (or zero) candidates.
func ResolveCandidates(html []byte, rootURL, protocol string) []Candidate {
	var out []Candidate
	for _, tag := range linkTagRe.FindAll(html, -1) {
		rel := attrValue(relAttrRe, tag)
		if !strings.Contains(strings.ToLower(rel), "icon") {
			continue
		}
		href := attrValue(hrefAttrRe, tag)
		if href == "" {
			continue
		}
		out = append(out, Candidate{URL: resolveHref(href, rootURL, protocol)})
	}

	var tileImage, tileColor string
	for _, tag := range metaTagRe.FindAll(html, -1) {
		switch strings.ToLower(attrValue(nameAttrRe, tag)) {
		case "msapplication-tileimage":
			if tileImage == "" {
				tileImage = attrValue(contentAttrRe, tag)
			}
		case "msapplication-tilecolor":
			if tileColor == "" {
				tileColor = attrValue(contentAttrRe, tag)
			}
		}
	}
	if tileImage != "" {
		out = append(out, Candidate{
			URL:             resolveHref(tileImage, rootURL, protocol),
			BackgroundColor: tileColor,
		})
	}
	return out
}

func attrValue(re *regexp.Regexp, tag []byte) string {
	m := re.FindSubmatch(tag)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if len(g) > 0 {
			return string(g)
		}
	}
	return ""
}

// resolveHref resolves an href the way the discovery heuristic promises:
// protocol-relative values get the scheme, root-relative values get the
// origin, everything else passes through untouched. Relative-path
// resolution beyond this is deliberately not attempted.
func resolveHref(href, rootURL, protocol string) string {
	switch {
	case strings.HasPrefix(href, "//"):
		return protocol + ":" + href
	case strings.HasPrefix(href, "/"):
		return originOf(rootURL) + href
	default:
		return href
	}
}

func originOf(rootURL string) string {
	u, err := url.Parse(rootURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(rootURL, "/")
	}
	return u.Scheme + "://" + u.Host
}
