package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleNormalizesWhitespaceAndSentenceCase(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{" hello", "world.", "\nfrom", "hark"}, Options{CapitalizeSentences: true})
	require.Equal(t, "Hello world. From hark", got)
}

func TestAssembleLeavesCaseAloneByDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello world", Assemble([]string{"hello", "world"}, Options{}))
}

func TestAssembleEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Assemble(nil, Options{CapitalizeSentences: true}))
}

func TestAssembleSkipsWhitespaceOnlySegments(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{"  ", "\n\t", "hello"}, Options{CapitalizeSentences: true})
	require.Equal(t, "Hello", got)
}

func TestAssembleDropsNonSpeechAnnotations(t *testing.T) {
	t.Parallel()

	require.Empty(t, Assemble([]string{"[BLANK_AUDIO]"}, Options{}))
	require.Empty(t, Assemble([]string{" [ Silence ] ", "(upbeat music)", "*wind*"}, Options{}))
	require.Equal(t, "turn left here", Assemble([]string{"[MUSIC] turn left", "(engine)", "here"}, Options{}))
	require.Equal(t, "call me (maybe) later", Assemble([]string{"call me (maybe) later"}, Options{}))
}

func TestAssembleSentenceCaseCapitalizesPronounI(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{"when i speak i'm clearer. i think i will keep using it."}, Options{CapitalizeSentences: true})
	require.Equal(t, "When I speak I'm clearer. I think I will keep using it.", got)
}

func TestAssembleSentenceCaseKeepsInitialisms(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{"bring snacks, i.e. fruit! then go"}, Options{CapitalizeSentences: true})
	require.Equal(t, "Bring snacks, i.e. fruit! Then go", got)
}

func TestAssembleIdempotentForNormalizedOutput(t *testing.T) {
	t.Parallel()

	opts := Options{CapitalizeSentences: true}
	first := Assemble([]string{"hello world. this is hark"}, opts)
	second := Assemble([]string{first}, opts)
	require.Equal(t, first, second)
}
