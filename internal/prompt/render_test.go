package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bash formats a block the way the bash dialect does. The text is passed
// through unquoted so expansions like \w can be written directly.
func bash(text string, c Color, bold bool) string {
	return Bash.Format(Block{Text: text, Color: c, Bold: bold, Shell: true})
}

const tail = "──────────"

func TestGlyphTable(t *testing.T) {
	tests := []struct {
		flags int
		want  rune
	}{
		{0b1111, '┼'},
		{0b1110, '┤'},
		{0b1101, '├'},
		{0b1100, '│'},
		{0b1011, '┴'},
		{0b1010, '┘'},
		{0b1001, '└'},
		{0b0110, '┐'},
		{0b0101, '┌'},
		{0b0111, '┬'},
		{0b0011, '─'},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, Glyph(tt.flags), "flags %04b", tt.flags)
	}

	for _, flags := range []int{0b0000, 0b0001, 0b0010, 0b0100, 0b1000} {
		assert.Equalf(t, ' ', Glyph(flags), "flags %04b", flags)
	}
}

func TestBlockEscapesAreLiteral(t *testing.T) {
	assert.Equal(t, "\\[\x1b[35m\\]A\\[\x1b[0m\\]", bash("A", Magenta, false))
	assert.Equal(t, "\\[\x1b[1;31m\\]B\\[\x1b[0m\\]", bash("B", Red, true))
	assert.Equal(t, "%{\x1b[36m%}C%{\x1b[0m%}", Zsh.Format(Block{Text: "C", Color: Cyan}))
	assert.Equal(t, "\x1b[92mD\x1b[0m", Raw("h").Format(Block{Text: "D", Color: BrightGreen}))
}

func TestLayoutBoxedThenIndentedFree(t *testing.T) {
	lines := []Line{
		{Level: 0, Kind: Boxed, Blocks: []Block{{Text: "A", Color: Cyan}}},
		{Level: 1, Kind: Free, Blocks: []Block{{Text: "B", Color: White}}},
	}

	// Depth 0 of the first line has only RIGHT set, which has no glyph.
	want := " ┬─┤" + bash("A", Cyan, false) + "├" + tail + "\n" +
		"┌┘ " + bash("B", White, false) + "\n" +
		"└─" + bash(`\$`, Red, false) + " "

	assert.Equal(t, want, Layout(lines))
}

func TestRenderEmpty(t *testing.T) {
	want := "┌─┤" + bash(`\w`, Magenta, false) + "├─┤" + bash(`\H`, Magenta, false) + "├" + tail + "\n" +
		"└─" + bash(`\$`, Red, false) + " "

	assert.Equal(t, want, Render(nil))
	assert.Equal(t, want, Render([]Line{}))
}

func TestRenderGitShapedTree(t *testing.T) {
	lines := []Line{
		NewLine().ColoredBlock("Git Status", Cyan).Build(),
		NewFreeLine().Indent().ColoredBlock(" M main.go", Blue).Build(),
		NewFreeLine().Indent().BoldColoredBlock("A  new.go", Green).Build(),
		NewLine().Indent().ColoredBlock("main -> origin/main", Cyan).Build(),
	}

	want := "┌─┤" + bash(`\w`, Magenta, false) + "├─┤" + bash(`\H`, Magenta, false) + "├" + tail + "\n" +
		"└┬─┤" + bash("Git Status", Cyan, false) + "├" + tail + "\n" +
		" │ " + bash(" M main.go", Blue, false) + "\n" +
		" │ " + bash("A  new.go", Green, true) + "\n" +
		"┌┴─┤" + bash("main -> origin/main", Cyan, false) + "├" + tail + "\n" +
		"└─" + bash(`\$`, Red, false) + " "

	assert.Equal(t, want, Render(lines))
}

func TestLayoutLevelJumps(t *testing.T) {
	lines := []Line{
		{Level: 0, Kind: Boxed},
		{Level: 3, Kind: Boxed},
		{Level: 1, Kind: Free},
	}
	rows := strings.Split(Layout(lines), "\n")
	require.Len(t, rows, 4)

	// line 0: current 0, after 3 -> depths 0..3, depth 0 is blank
	assert.Equal(t, " ──┬"+tail, rows[0])
	// line 1: current 3, after 1 -> one pad space, depths 1..3
	assert.Equal(t, " ┌─┴"+tail, rows[1])
	// line 2: last line, current 1, after 0 -> depths 0..1
	assert.Equal(t, "┌┘", rows[2])
	assert.Equal(t, "└─"+bash(`\$`, Red, false)+" ", rows[3])
}

func TestLayoutFreeLineWithSeveralBlocks(t *testing.T) {
	lines := []Line{
		{Level: 0, Kind: Free, Blocks: []Block{{Text: "x", Color: Red}, {Text: "y", Color: Blue, Bold: true}}},
	}
	want := "  " + bash("x", Red, false) + " " + bash("y", Blue, true) + "\n" +
		"└─" + bash(`\$`, Red, false) + " "
	// Single free line at depth 0: only BOTTOM is set (0100) which is blank.
	assert.Equal(t, want, Layout(lines))
}

func TestLayoutBoxedLineWithSeveralBlocks(t *testing.T) {
	lines := []Line{
		NewLine().Block("one").Block("two").Build(),
	}
	want := "┌─┤" + bash("one", Magenta, false) + "├─┤" + bash("two", Magenta, false) + "├" + tail + "\n" +
		"└─" + bash(`\$`, Red, false) + " "
	assert.Equal(t, want, Layout(lines))
}

func TestLayoutJoinedBlocksShareABox(t *testing.T) {
	lines := []Line{
		NewLine().ColoredBlock("main", Cyan).Joined(" -> origin/main", Magenta).Build(),
		NewFreeLine().Indent().ColoredBlock("a", White).Joined("b", Red).Build(),
	}
	want := " ┬─┤" + bash("main", Cyan, false) + bash(" -> origin/main", Magenta, false) + "├" + tail + "\n" +
		"┌┘ " + bash("a", White, false) + bash("b", Red, false) + "\n" +
		"└─" + bash(`\$`, Red, false) + " "
	assert.Equal(t, want, Layout(lines))
}

func TestPluginTextIsQuoted(t *testing.T) {
	assert.Equal(t, `C:\\dir`, Bash.Quote(`C:\dir`))
	assert.Equal(t, "100%% done", Zsh.Quote("100% done"))
	assert.Equal(t, `50% \w`, Raw("h").Quote(`50% \w`))

	assert.Equal(t, "\\[\x1b[35m\\]a\\\\w\\[\x1b[0m\\]", Bash.Format(Block{Text: `a\w`, Color: Magenta}))
	assert.Equal(t, "%{\x1b[35m%}%%~%{\x1b[0m%}", Zsh.Format(Block{Text: "%~", Color: Magenta}))

	// Header expansions are left for the shell.
	zsh := Renderer{Dialect: Zsh}.Render([]Line{NewLine().Block("50%").Build()})
	assert.Contains(t, zsh, "%{\x1b[35m%}%~%{\x1b[0m%}")
	assert.Contains(t, zsh, "50%%")
}

func TestRenderIsDeterministic(t *testing.T) {
	lines := []Line{
		NewLine().ColoredBlock("Git Outgoing", Cyan).IndentBy(1).Build(),
		NewFreeLine().IndentBy(2).ColoredBlock("abc123 fix", White).Build(),
		NewLine().IndentBy(1).ColoredBlock("main", Cyan).Build(),
	}
	first := Render(lines)
	second := Render(lines)
	assert.Equal(t, first, second)
}

func TestRendererDialects(t *testing.T) {
	zsh := Renderer{Dialect: Zsh}.Render(nil)
	assert.Contains(t, zsh, "%~")
	assert.Contains(t, zsh, "%M")
	assert.True(t, strings.HasSuffix(zsh, "%{\x1b[31m%}%#%{\x1b[0m%} "))

	raw := Renderer{Dialect: Raw("box"), Path: "/srv/data"}.Render(nil)
	assert.Contains(t, raw, "/srv/data")
	assert.Contains(t, raw, "box")
	assert.NotContains(t, raw, `\[`)
}

func TestDialectByName(t *testing.T) {
	d, err := DialectByName("")
	require.NoError(t, err)
	assert.Equal(t, "bash", d.Name)

	d, err = DialectByName("ZSH")
	require.NoError(t, err)
	assert.Equal(t, "zsh", d.Name)

	d, err = DialectByName("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", d.Name)

	_, err = DialectByName("fish")
	assert.Error(t, err)
}

func TestLineBuilder(t *testing.T) {
	line := NewFreeLine().IndentBy(2).IndentBy(-5).Indent().BoldColoredBlock("x", Yellow).Build()
	assert.Equal(t, 1, line.Level)
	assert.Equal(t, Free, line.Kind)
	assert.Equal(t, []Block{{Text: "x", Color: Yellow, Bold: true}}, line.Blocks)

	line = NewLine().ShellBlock(`\w`).Joined("!", Red).Build()
	assert.Equal(t, []Block{{Text: `\w`, Color: Magenta, Shell: true}, {Text: "!", Color: Red, Join: true}}, line.Blocks)

	assert.Equal(t, Boxed, NewLine().Build().Kind)
	assert.Equal(t, "boxed", Boxed.String())
	assert.Equal(t, "free", Free.String())
}
