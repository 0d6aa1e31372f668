// Package extract converts uploaded document bytes into plain text ready
// for chunking. Format detection goes by file extension first, falling back
// to the declared content type.
package extract

import (
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

// Extract returns the plain text content of the document, or a validation
// error when the format is unsupported or the bytes are not valid UTF-8.
func Extract(filename, contentType string, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "document is not valid UTF-8 text")
	}

	text := string(raw)
	switch detectFormat(filename, contentType) {
	case formatHTML:
		return stripHTML(text), nil
	case formatMarkdown:
		return stripMarkdown(text), nil
	case formatPlain:
		return text, nil
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation,
			"unsupported document format: "+filepath.Ext(filename))
	}
}

type format int

const (
	formatUnknown format = iota
	formatPlain
	formatMarkdown
	formatHTML
)

func detectFormat(filename, contentType string) format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".log":
		return formatPlain
	case ".md", ".markdown":
		return formatMarkdown
	case ".html", ".htm", ".xhtml":
		return formatHTML
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch mediaType {
	case "text/plain":
		return formatPlain
	case "text/markdown", "text/x-markdown":
		return formatMarkdown
	case "text/html", "application/xhtml+xml":
		return formatHTML
	}

	return formatUnknown
}

// Pre-compiled regular expressions for HTML stripping.
var (
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headTag       = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripHTML removes markup and extracts readable text content
func stripHTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	// Block boundaries become newlines so sentences don't run together.
	content = blockElements.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// Pre-compiled regular expressions for markdown stripping.
var (
	codeBlock    = regexp.MustCompile("(?s)```[^`]*```")
	inlineCode   = regexp.MustCompile("`[^`]+`")
	mdImages     = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinks      = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeadings   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquote = regexp.MustCompile(`(?m)^>\s*`)
	mdHRule      = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdListMarker = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumbered   = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
)

// stripMarkdown removes common markdown formatting for plain text content
func stripMarkdown(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "")
	content = mdImages.ReplaceAllString(content, "")
	content = mdLinks.ReplaceAllString(content, "$1")
	content = mdHeadings.ReplaceAllString(content, "")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdHRule.ReplaceAllString(content, "")
	content = mdListMarker.ReplaceAllString(content, "")
	content = mdNumbered.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
