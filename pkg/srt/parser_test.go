package srt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `1
00:00:01,000 --> 00:00:04,000
Hello there.

2
00:00:04,500 --> 00:00:06,000
General Kenobi.

`

func TestParseBasic(t *testing.T) {
	doc, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, doc.Entries, 2)

	assert.Equal(t, 1, doc.Entries[0].Index)
	assert.Equal(t, time.Second, doc.Entries[0].Start)
	assert.Equal(t, 4*time.Second, doc.Entries[0].End)
	assert.Equal(t, "Hello there.", doc.Entries[0].Text)

	assert.Equal(t, 2, doc.Entries[1].Index)
	assert.Equal(t, "General Kenobi.", doc.Entries[1].Text)
}

func TestParseSingleEntry(t *testing.T) {
	doc, err := Parse(strings.NewReader("1\n00:00:00,000 --> 00:00:01,000\nOnly line.\n"))
	require.NoError(t, err)
	require.Equal(t, 1, doc.Len())
}

func TestParseNonSequentialIndex(t *testing.T) {
	bad := "1\n00:00:01,000 --> 00:00:02,000\nA\n\n3\n00:00:02,000 --> 00:00:03,000\nB\n"
	_, err := Parse(strings.NewReader(bad))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseBadTimestamp(t *testing.T) {
	bad := "1\nnot-a-timestamp\nA\n"
	_, err := Parse(strings.NewReader(bad))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseStartAfterEnd(t *testing.T) {
	bad := "1\n00:00:05,000 --> 00:00:01,000\nA\n"
	_, err := Parse(strings.NewReader(bad))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRoundTrip(t *testing.T) {
	doc, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	reparsed, err := Parse(strings.NewReader(Format(doc)))
	require.NoError(t, err)

	assert.Equal(t, doc.Entries, reparsed.Entries)
}

func TestFullTextAndSlice(t *testing.T) {
	doc, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "Hello there. General Kenobi.", doc.FullText())
	assert.Equal(t, "Hello there.", doc.Text(1, 1))
	assert.Equal(t, int64(1000), doc.Entries[0].StartMS())
}
