package web

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	fetchTimeout = 15 * time.Second
	maxBodyBytes = 2 << 20 // 2MB of raw HTML

	// maxContentChars caps extracted text fed back to the model.
	maxContentChars = 12000
	truncationMark  = "\n\n[...truncated...]"
)

var multiBlankRe = regexp.MustCompile(`\n{3,}`)

// Page is the extracted content of a fetched webpage.
type Page struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	WordCount       int    `json:"wordCount"`
	MetaDescription string `json:"metaDescription,omitempty"`
	Author          string `json:"author,omitempty"`
	PublishedDate   string `json:"publishedDate,omitempty"`
}

// Fetcher downloads webpages and extracts readable text.
type Fetcher struct {
	client *http.Client

	// allowPrivate disables the private-address guard. Tests only.
	allowPrivate bool
}

// NewFetcher creates a webpage fetcher. Redirects into private address
// space are refused so the tool cannot be steered at internal services.
func NewFetcher() *Fetcher {
	f := &Fetcher{}
	f.client = &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			if err := f.validateHost(req.URL.Hostname()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
	return f
}

// Fetch downloads the URL and returns its extracted content, capped at a
// fixed character ceiling with an explicit truncation marker.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q: only http and https are allowed", u.Scheme)
	}
	if err := f.validateHost(u.Hostname()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating fetch request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; lorekeep/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading page body: %w", err)
	}

	page := extract(string(body))
	if len(page.Content) > maxContentChars {
		page.Content = page.Content[:maxContentChars] + truncationMark
	}
	page.WordCount = len(strings.Fields(page.Content))
	return page, nil
}

// extract walks the HTML tree collecting visible text, the title, and
// common metadata. Script and style subtrees are skipped.
func extract(rawHTML string) *Page {
	page := &Page{}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		page.Content = strings.TrimSpace(rawHTML)
		return page
	}

	var text strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			case "title":
				if n.FirstChild != nil && page.Title == "" {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "meta":
				readMeta(n, page)
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "tr":
				text.WriteString("\n")
			}
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				text.WriteString(t)
				text.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	page.Content = strings.TrimSpace(multiBlankRe.ReplaceAllString(text.String(), "\n\n"))
	return page
}

func readMeta(n *html.Node, page *Page) {
	var name, content string
	for _, a := range n.Attr {
		switch a.Key {
		case "name", "property":
			name = strings.ToLower(a.Val)
		case "content":
			content = a.Val
		}
	}
	if content == "" {
		return
	}
	switch name {
	case "description", "og:description":
		if page.MetaDescription == "" {
			page.MetaDescription = content
		}
	case "author", "article:author":
		if page.Author == "" {
			page.Author = content
		}
	case "article:published_time", "date":
		if page.PublishedDate == "" {
			page.PublishedDate = content
		}
	}
}

// validateHost refuses hostnames that resolve to private or reserved
// address space.
func (f *Fetcher) validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if f.allowPrivate {
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("host %q is not allowed", host)
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		// Resolution failure surfaces later as a network error.
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("host %q resolves to a private address", host)
		}
	}
	return nil
}

var privateCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

func isPrivateIP(ip net.IP) bool {
	for _, r := range privateCIDRs {
		_, cidr, err := net.ParseCIDR(r)
		if err != nil {
			continue
		}
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
