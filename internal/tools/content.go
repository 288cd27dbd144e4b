package tools

import (
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// boilerplate matches page chrome that never belongs to the main content.
const boilerplate = "script, style, noscript, template, iframe, svg, nav, header, footer, aside, " +
	"[role=navigation], [role=banner], [role=contentinfo], [role=search], [aria-hidden=true]"

// blockElements get a line break after them in the text rendering.
const blockElements = "p, div, section, article, main, h1, h2, h3, h4, h5, h6, li, tr, br, pre, blockquote, table, ul, ol, dl, dt, dd, figure, figcaption"

// mainContent extracts the main content of page as HTML. Boilerplate is
// removed first, links and images are made absolute against pageURL, and
// readability then picks the article. Pages readability cannot handle fall
// back to the cleaned body.
func mainContent(page, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	doc.Find(boilerplate).Remove()

	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		base = nil
	}
	if base != nil {
		absolutize(doc, base)
	}

	cleaned, err := doc.Html()
	if err != nil {
		return "", err
	}
	if base != nil {
		article, err := readability.FromReader(strings.NewReader(cleaned), base)
		if err == nil && strings.TrimSpace(article.TextContent) != "" {
			return article.Content, nil
		}
	}
	return doc.Find("body").Html()
}

func absolutize(doc *goquery.Document, base *url.URL) {
	resolve := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(attr)
			ref, err := url.Parse(strings.TrimSpace(raw))
			if err != nil {
				return
			}
			s.SetAttr(attr, base.ResolveReference(ref).String())
		}
	}
	doc.Find("a[href]").Each(resolve("href"))
	doc.Find("img[src]").Each(resolve("src"))
}

// PageMarkdown renders the main content of page as markdown with absolute links.
func PageMarkdown(page, pageURL string) (string, error) {
	content, err := mainContent(page, pageURL)
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(content, converter.WithDomain(pageURL))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// PageText renders the main content of page as plain text, one block per line.
func PageText(page, pageURL string) (string, error) {
	content, err := mainContent(page, pageURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", err
	}
	doc.Find(blockElements).AfterHtml("\n")
	return squeezeLines(doc.Text()), nil
}

// squeezeLines trims every line and collapses runs of blank lines into one.
func squeezeLines(s string) string {
	var (
		out   []string
		blank bool
	)
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
