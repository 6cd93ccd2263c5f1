package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trans/xerp-sub001/internal/types"
)

func textOf(occs []Occurrence) map[string][]types.TokenKind {
	out := map[string][]types.TokenKind{}
	for _, o := range occs {
		out[o.Text] = append(out[o.Text], o.Kind)
	}
	return out
}

func TestBasicTokenization(t *testing.T) {
	tk := New(DefaultConfig())
	res := tk.Tokenize([]string{"def foo(bar)", "  baz = 42", "end"})

	byText := textOf(res.Occurrences)
	for _, id := range []string{"def", "foo", "bar", "baz", "end"} {
		require.Containsf(t, byText, id, "missing ident %s", id)
		require.Contains(t, byText[id], types.KindIdent)
	}
	require.Contains(t, byText, "42")
	require.Contains(t, byText["42"], types.KindNum)

	for k, kinds := range byText {
		for _, kind := range kinds {
			require.NotEqualf(t, types.KindWord, kind, "unexpected word token %q", k)
		}
	}

	require.Equal(t, []int{1}, res.Aggregate["foo"].Lines)
	require.Equal(t, []int{2}, res.Aggregate["baz"].Lines)
}

func TestLineComments(t *testing.T) {
	tk := New(DefaultConfig())
	res := tk.Tokenize([]string{"x = 1 // the Quick fox", "y = 2 # another one"})
	byText := textOf(res.Occurrences)
	require.Contains(t, byText["quick"], types.KindWord)
	require.Contains(t, byText["fox"], types.KindWord)
	require.Contains(t, byText["another"], types.KindWord)
}

func TestBlockCommentSpansLines(t *testing.T) {
	tk := New(DefaultConfig())
	res := tk.Tokenize([]string{"/* start of", "a long comment", "end */", "real_ident"})
	byText := textOf(res.Occurrences)
	require.Contains(t, byText, "start")
	require.Contains(t, byText["start"], types.KindWord)
	require.Contains(t, byText, "long")
	require.Contains(t, byText, "real_ident")
	require.Contains(t, byText["real_ident"], types.KindIdent)
}

func TestStringLiteral(t *testing.T) {
	tk := New(DefaultConfig())
	res := tk.Tokenize([]string{`msg = "hello world"`})
	byText := textOf(res.Occurrences)
	require.Contains(t, byText["hello"], types.KindStr)
	require.Contains(t, byText["world"], types.KindStr)
	require.Contains(t, byText["msg"], types.KindIdent)
}

func TestCompoundDerivation(t *testing.T) {
	tk := New(DefaultConfig())
	res := tk.Tokenize([]string{"obj.method", "Foo::Bar"})
	byText := textOf(res.Occurrences)
	require.Contains(t, byText["obj.method"], types.KindCompound)
	require.Contains(t, byText["Foo::Bar"], types.KindCompound)
	require.Contains(t, byText["obj"], types.KindIdent)
	require.Contains(t, byText["method"], types.KindIdent)
	require.Contains(t, byText["Foo"], types.KindIdent)
	require.Contains(t, byText["Bar"], types.KindIdent)
}

func TestKindUpgrading(t *testing.T) {
	// "retry" appears first as a word (in a comment) then as an ident; the
	// stored aggregate kind must be the higher-weight ident.
	tk := New(DefaultConfig())
	res := tk.Tokenize([]string{"// retry later", "retry()"})
	require.Equal(t, types.KindIdent, res.Aggregate["retry"].Kind)
	require.Equal(t, []int{1, 2}, res.Aggregate["retry"].Lines)
}

func TestMaxTokenLenRejectsOverlong(t *testing.T) {
	tk := New(Config{MaxTokenLen: 4})
	res := tk.Tokenize([]string{"// thisisaverylongword ok"})
	byText := textOf(res.Occurrences)
	require.NotContains(t, byText, "thisisaverylongword")
	require.Contains(t, byText, "ok")
}
