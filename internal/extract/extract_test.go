package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Text(t *testing.T) {
	text, err := New().Extract("notes.TXT", []byte("\xef\xbb\xbfOpening hours are nine to five."))
	require.NoError(t, err)
	assert.Equal(t, "Opening hours are nine to five.", text)
}

func TestExtract_Errors(t *testing.T) {
	_, err := New().Extract("blank.txt", []byte(" \n\t "))
	assert.ErrorIs(t, err, ErrNoText)

	_, err = New().Extract("slides.pptx", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = New().Extract("broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.pdf"))
	assert.True(t, Supported("B.Txt"))
	assert.False(t, Supported("c.docx"))
	assert.False(t, Supported("noext"))
}
