package samples

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visadoc-backend/internal/analysis"
)

func TestEmbeddedCatalog(t *testing.T) {
	list := List()
	require.NotEmpty(t, list)

	s, err := Get("")
	require.NoError(t, err)
	assert.Equal(t, DefaultID, s.ID)
	assert.Equal(t, analysis.SituationOPTApply, s.Situation)
	assert.True(t, strings.HasPrefix(s.Text, "Subject: OPT Update - Action Required"))
	assert.Contains(t, s.Text, "within 30 days of the new I-20 issuance date")
	assert.True(t, strings.HasSuffix(s.Text, "ISO"))
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReturnsCopy(t *testing.T) {
	list := List()
	list[0].Text = "changed"
	assert.NotEqual(t, "changed", List()[0].Text)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"missing id":   "samples:\n  - text: long enough text here\n",
		"duplicate":    "samples:\n  - id: a\n    text: long enough text\n  - id: a\n    text: long enough text\n",
		"situation":    "samples:\n  - id: a\n    situation: h1b\n    text: long enough text\n",
		"short text":   "samples:\n  - id: a\n    text: hi\n",
		"invalid yaml": "samples: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}
