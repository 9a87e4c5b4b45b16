package shell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeSplitsWordsAndMetacharacters(t *testing.T) {
	tokens := Tokenize("ls -la | grep foo > out.txt")
	require.Equal(t, []string{"ls", "-la", "|", "grep", "foo", ">", "out.txt"}, tokens)
}

func TestTokenizeHandlesAdjacentMetacharacters(t *testing.T) {
	tokens := Tokenize("cat<in.txt")
	require.Equal(t, []string{"cat", "<", "in.txt"}, tokens)
}

func TestBuildSingleCommand(t *testing.T) {
	p, err := Build("echo hello world")
	require.NoError(t, err)
	require.Len(t, p.Commands, 1)
	require.Equal(t, []string{"echo", "hello", "world"}, p.Commands[0].Args)
	require.False(t, p.Background)
}

func TestBuildPipelineWithRedirects(t *testing.T) {
	p, err := Build("sort < in.txt | uniq > out.txt")
	require.NoError(t, err)
	require.Len(t, p.Commands, 2)
	require.Equal(t, "in.txt", p.Commands[0].RedirectIn)
	require.Equal(t, "out.txt", p.Commands[1].RedirectOut)
}

func TestBuildBackgroundFlag(t *testing.T) {
	p, err := Build("sleep 10 &")
	require.NoError(t, err)
	require.True(t, p.Background)
}

func TestBuildRejectsLeadingMetacharacter(t *testing.T) {
	_, err := Build("| grep foo")
	require.Error(t, err)
}

func TestBuildAllowsMidPipelineRedirect(t *testing.T) {
	p, err := Build("cat > out.txt | grep foo")
	require.NoError(t, err)
	require.Len(t, p.Commands, 2)
	require.Equal(t, "out.txt", p.Commands[0].RedirectOut)
	require.Empty(t, p.Commands[1].RedirectIn)
}

func TestBuildRejectsDuplicateAmpersand(t *testing.T) {
	_, err := Build("sleep 1 & &")
	require.Error(t, err)
}

func TestBuildRejectsEmptyCommand(t *testing.T) {
	_, err := Build("")
	require.Error(t, err)
}
