package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func edgesOf(firstWord string, count, total int) []EdgeLines {
	edges := make([]EdgeLines, total)
	for i := 0; i < total; i++ {
		if i < count {
			edges[i] = EdgeLines{First: firstWord + " foo", Last: "}"}
		} else {
			edges[i] = EdgeLines{First: "{", Last: "}"}
		}
	}
	return edges
}

func TestLearnKeywordsRequiresBothCountAndRatio(t *testing.T) {
	// 5 occurrences out of 1000 clears the count floor but not the 3% ratio.
	require.Empty(t, LearnKeywords(edgesOf("begin", 5, 1000)))

	// 4 occurrences out of 50 clears the ratio but not the 5-occurrence floor.
	require.Empty(t, LearnKeywords(edgesOf("begin", 4, 50)))

	// 5 out of 100 clears both.
	require.Equal(t, []string{"begin"}, LearnKeywords(edgesOf("begin", 5, 100)))
}

func TestLearnKeywordsCountsOncePerBlockRegardlessOfBothEdges(t *testing.T) {
	edges := make([]EdgeLines, 20)
	for i := range edges {
		if i < 5 {
			// "begin" on both edges of the same block: one vote, not two.
			edges[i] = EdgeLines{First: "begin", Last: "begin"}
		} else if i < 8 {
			// "rescue" on both edges of 3 blocks: 3 votes, under the
			// 5-occurrence floor; counting each edge would give it 6.
			edges[i] = EdgeLines{First: "rescue", Last: "rescue"}
		} else {
			edges[i] = EdgeLines{First: "{", Last: "}"}
		}
	}
	require.Equal(t, []string{"begin"}, LearnKeywords(edges))
}

func TestLearnKeywordsEmptyInput(t *testing.T) {
	require.Nil(t, LearnKeywords(nil))
}

func TestWithLearnedMergesAndWinsOverDefaults(t *testing.T) {
	ks := DefaultKeywords()
	require.True(t, ks.IsHeaderKeyword("def"))
	require.False(t, ks.IsHeaderKeyword("begin"))

	learned := ks.WithLearned([]string{"begin"})
	require.True(t, learned.IsHeaderKeyword("def")) // default tier preserved
	require.True(t, learned.IsHeaderKeyword("begin"))

	// Replacing the learned tier again drops the old learned entry, but the
	// default tier is untouched either way.
	relearned := learned.WithLearned([]string{"rescue"})
	require.False(t, relearned.IsHeaderKeyword("begin"))
	require.True(t, relearned.IsHeaderKeyword("rescue"))
	require.True(t, relearned.IsHeaderKeyword("def"))
}

func TestLearnedKeywordTriggersSiblingSplitAlgolAdapterDoesNotSplitOnByDefault(t *testing.T) {
	lines := []string{
		"class Foo",
		"  begin one",
		"  begin two",
		"end",
	}
	a := algolAdapter{}

	withoutLearned := a.BuildBlocks(lines, DefaultOptions())
	plainBlocks := len(withoutLearned.Blocks)

	opts := DefaultOptions()
	opts.Keywords = DefaultKeywords().WithLearned([]string{"begin"})
	withLearned := a.BuildBlocks(lines, opts)

	require.Greater(t, len(withLearned.Blocks), plainBlocks)
}
