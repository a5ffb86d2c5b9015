package crawl

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// page is the result of parsing one fetched document into retrieval-ready
// text plus the outbound links worth following.
type page struct {
	Title   string
	Text    string // markdown-ish rendering: headings kept as "# "-prefixed lines, paragraphs separated by blank lines
	Links   []string
}

// parsePage walks the HTML tree once, extracting the title, a
// heading-aware text rendering (so the chunker's markdown-style header
// detection still applies to crawled pages), and every <a href> found,
// resolved against base.
func parsePage(rawHTML string, base *url.URL) (page, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return page{}, err
	}

	var p page
	var buf strings.Builder
	var walk func(*html.Node)
	inScript := false

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				inScript = true
				defer func() { inScript = false }()
			case "a":
				if href, ok := attr(n, "href"); ok {
					if resolved, ok := resolveLink(base, href); ok {
						p.Links = append(p.Links, resolved)
					}
				}
			case "title":
				if p.Title == "" {
					p.Title = strings.TrimSpace(textContent(n))
				}
			case "h1", "h2", "h3", "h4", "h5", "h6":
				level := int(n.Data[1] - '0')
				heading := strings.TrimSpace(textContent(n))
				if heading != "" {
					buf.WriteString("\n\n" + strings.Repeat("#", level) + " " + heading + "\n\n")
				}
				return // don't descend into heading text again below
			}
		}
		if n.Type == html.TextNode && !inScript {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				buf.WriteString(t)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.Text = collapseBlankLines(buf.String())
	return p, nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// matchesPatterns reports whether target matches at least one of
// includes (or includes is empty) and none of excludes. Patterns use
// path.Match glob syntax against the URL's path, per
// SpiderConfig.IncludePatterns/ExcludePatterns.
func matchesPatterns(target string, includes, excludes []string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	subject := u.Path
	if subject == "" {
		subject = "/"
	}

	for _, pattern := range excludes {
		if globMatch(pattern, subject) || globMatch(pattern, target) {
			return false
		}
	}
	if len(includes) == 0 {
		return true
	}
	for _, pattern := range includes {
		if globMatch(pattern, subject) || globMatch(pattern, target) {
			return true
		}
	}
	return false
}

func globMatch(pattern, subject string) bool {
	ok, err := path.Match(pattern, subject)
	return err == nil && ok
}

func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
