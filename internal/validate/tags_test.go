package validate

import (
	"strings"
	"testing"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTagsTrimsLowercasesAndDedups(t *testing.T) {
	out, err := NormalizeTags([]string{"  Work  ", "work", "URGENT"})
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "urgent"}, out)
}

func TestNormalizeTagsRejectsEmpty(t *testing.T) {
	_, err := NormalizeTags([]string{"   "})
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindValidation, kind)
}

func TestNormalizeTagsRejectsInvalidCharset(t *testing.T) {
	_, err := NormalizeTags([]string{"has space"})
	require.Error(t, err)

	_, err = NormalizeTags([]string{"has/slash"})
	require.Error(t, err)
}

func TestNormalizeTagsAllowsColonDashUnderscore(t *testing.T) {
	out, err := NormalizeTags([]string{"project:alpha", "high-priority", "needs_review"})
	require.NoError(t, err)
	assert.Equal(t, []string{"project:alpha", "high-priority", "needs_review"}, out)
}

func TestNormalizeTagsRejectsTooLong(t *testing.T) {
	_, err := NormalizeTags([]string{strings.Repeat("a", MaxTagBytes+1)})
	require.Error(t, err)
}

func TestNormalizeTagsRejectsTooMany(t *testing.T) {
	tags := make([]string, MaxTagsPerEntry+1)
	for i := range tags {
		tags[i] = "t"
	}
	_, err := NormalizeTags(tags)
	require.Error(t, err)
}

func TestNormalizeTagsEmptyInputYieldsEmptyOutput(t *testing.T) {
	out, err := NormalizeTags(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
