package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/c360studio/longform/resilience"
	"github.com/c360studio/longform/tool"
)

const (
	researchUserAgent    = "longform-research/1.0"
	researchMaxBodyBytes = 4 << 20
	researchFetchTimeout = 30 * time.Second
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// researcher fetches a page and reduces it to readable markdown.
type researcher struct {
	client    *http.Client
	converter *md.Converter
}

func newResearcher() *researcher {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &researcher{
		client: &http.Client{
			Timeout: researchFetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		converter: converter,
	}
}

// newResearchTool builds the web research tool. Network and server
// failures are transient; an unusable URL is fatal at validation time.
func newResearchTool(breaker *resilience.Breaker) *tool.Tool {
	r := newResearcher()

	return &tool.Tool{
		Name:        ToolResearch,
		Description: "Fetch a web page and extract its main content as markdown",
		Class:       tool.ClassAnalysis,
		Breaker:     breaker,
		ValidateParams: func(params any) error {
			p, ok := params.(ResearchParams)
			if !ok {
				return fmt.Errorf("expected ResearchParams, got %T", params)
			}
			u, err := url.Parse(p.URL)
			if err != nil {
				return fmt.Errorf("invalid url: %w", err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("unsupported scheme %q", u.Scheme)
			}
			if u.Host == "" {
				return fmt.Errorf("url has no host")
			}
			return nil
		},
		Run: func(ctx context.Context, params any) (any, error) {
			p := params.(ResearchParams)
			return r.fetch(ctx, p.URL)
		},
		ValidateResult: func(result any) error {
			res, ok := result.(ResearchResult)
			if !ok {
				return fmt.Errorf("expected ResearchResult, got %T", result)
			}
			if strings.TrimSpace(res.Markdown) == "" {
				return fmt.Errorf("page yielded no readable content")
			}
			return nil
		},
	}
}

func (r *researcher) fetch(ctx context.Context, urlStr string) (ResearchResult, error) {
	var zero ResearchResult

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return zero, resilience.NewFatalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", researchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return zero, resilience.NewTransientError(fmt.Errorf("fetch %s: %w", urlStr, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch %s: HTTP %d", urlStr, resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return zero, resilience.NewTransientError(err)
		}
		return zero, resilience.NewFatalError(err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, researchMaxBodyBytes+1))
	if err != nil {
		return zero, resilience.NewTransientError(fmt.Errorf("read body: %w", err))
	}
	if len(body) > researchMaxBodyBytes {
		return zero, resilience.NewFatalError(fmt.Errorf("content too large (exceeds %d bytes)", researchMaxBodyBytes))
	}

	return r.extract(req.URL, body)
}

// extract reduces raw HTML to title + markdown. Readability extraction is
// tried first; when the page has no recognizable article structure we fall
// back to stripping boilerplate elements and converting the body.
func (r *researcher) extract(pageURL *url.URL, body []byte) (ResearchResult, error) {
	var zero ResearchResult

	title := ""
	content := ""

	article, err := readability.FromReader(strings.NewReader(string(body)), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		title = article.Title
		content = article.Content
	} else {
		content = stripBoilerplate(body)
	}

	markdown, err := r.converter.ConvertString(content)
	if err != nil {
		return zero, resilience.NewFatalError(fmt.Errorf("convert to markdown: %w", err))
	}
	markdown = cleanMarkdown(markdown)

	if title == "" {
		title = extractHTMLTitle(body)
	}
	if title == "" {
		title = extractMarkdownTitle(markdown)
	}

	return ResearchResult{Title: title, Markdown: markdown}, nil
}

// stripBoilerplate removes navigation, script, and chrome elements and
// returns the body subtree as HTML.
func stripBoilerplate(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return string(content)
	}

	removeElements(doc, []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button",
	})

	if body := findElement(doc, "body"); body != nil {
		var sb strings.Builder
		html.Render(&sb, body)
		return sb.String()
	}
	return string(content)
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	var result *html.Node
	var find func(*html.Node)
	find = func(node *html.Node) {
		if result != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == tag {
			result = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(n)
	return result
}

// removeElements removes all elements with the given tag names.
func removeElements(n *html.Node, tags []string) {
	tagSet := make(map[string]bool)
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// extractHTMLTitle extracts the document title element's text.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var title string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			extract(c)
		}
	}
	extract(doc)

	return title
}

// extractMarkdownTitle extracts the first H1 heading from markdown.
func extractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// cleanMarkdown collapses excessive blank lines and trims trailing
// whitespace from each line.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
