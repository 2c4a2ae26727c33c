package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitChunksSingleChunkUnderTarget(t *testing.T) {
	chunks := SplitChunks("short text", defaultChunkTarget, defaultChunkMax)
	assert.Equal(t, []string{"short text"}, chunks)
}

func TestSplitChunksCutsAtSentenceBoundary(t *testing.T) {
	// Build text where the 2000th rune falls mid-sentence but a period
	// appears shortly after, within the scan window.
	prefix := strings.Repeat("a", defaultChunkTarget-5) + "end of sentence. "
	text := prefix + strings.Repeat("b", 100)

	chunks := SplitChunks(text, defaultChunkTarget, defaultChunkMax)
	assert.True(t, len(chunks) >= 2)
	assert.True(t, strings.HasSuffix(chunks[0], "."))
}

func TestSplitChunksFallsBackToHardCutWhenNoPunctuation(t *testing.T) {
	text := strings.Repeat("a", defaultChunkTarget+500)
	chunks := SplitChunks(text, defaultChunkTarget, defaultChunkMax)
	assert.True(t, len(chunks) >= 2)
	assert.LessOrEqual(t, len([]rune(chunks[0])), defaultChunkMax)
}

func TestJoinReassemblesInOrder(t *testing.T) {
	assert.Equal(t, "a b c", Join([]string{"a", "b", "c"}))
}
