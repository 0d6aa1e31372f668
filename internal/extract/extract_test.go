package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

func TestExtractPlainText(t *testing.T) {
	text, err := Extract("notes.txt", "", []byte("plain content\nwith lines"))
	require.NoError(t, err)
	assert.Equal(t, "plain content\nwith lines", text)
}

func TestExtractMarkdown(t *testing.T) {
	md := "# Title\n\nSome **bold** text with a [link](https://example.com).\n\n- item one\n- item two\n"
	text, err := Extract("readme.md", "", []byte(md))
	require.NoError(t, err)

	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "https://example.com")
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "bold")
	assert.Contains(t, text, "link")
	assert.Contains(t, text, "item one")
}

func TestExtractHTML(t *testing.T) {
	page := `<html><head><title>Ignored</title><style>p{color:red}</style></head>
<body><script>alert(1)</script><p>First paragraph.</p><p>Second &amp; third.</p></body></html>`
	text, err := Extract("page.html", "", []byte(page))
	require.NoError(t, err)

	assert.NotContains(t, text, "<p>")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second & third.")
}

func TestExtractFallsBackToContentType(t *testing.T) {
	text, err := Extract("upload", "text/markdown; charset=utf-8", []byte("# Heading\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "Heading\nbody", text)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := Extract("image.png", "image/png", []byte("binary-ish"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))
}

func TestExtractRejectsInvalidUTF8(t *testing.T) {
	_, err := Extract("notes.txt", "text/plain", []byte{0xff, 0xfe, 0x00})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))
}
