// Package prompt builds the tree-shaped shell prompt: the Block/Line model,
// the layout algorithm that joins lines with box-drawing connectors, and the
// Buffer that runs plugins to produce those lines for a directory.
package prompt

// Color is one of the 16 standard terminal colors.
type Color int

const (
	Black Color = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
	BrightBlack
	BrightRed
	BrightGreen
	BrightYellow
	BrightBlue
	BrightMagenta
	BrightCyan
	BrightWhite
)

// Kind selects how a line is framed.
type Kind int

const (
	// Boxed lines wrap each block in connector glyphs and trail off to the right.
	Boxed Kind = iota
	// Free lines only carry the indentation glyphs.
	Free
)

func (k Kind) String() string {
	if k == Free {
		return "free"
	}
	return "boxed"
}

// Block is the smallest piece of a prompt line: a run of text in one color.
type Block struct {
	Text  string
	Color Color
	Bold  bool

	// Shell text is a prompt expansion (\w, %~) and is written unquoted.
	Shell bool
	// Join continues the previous block: same box, no separating space.
	Join bool
}

// Line is one row of the prompt. Level is a nesting depth used only for
// layout; jumps between consecutive levels are allowed.
type Line struct {
	Level  int
	Kind   Kind
	Blocks []Block
}

// LineBuilder constructs a Line.
//
//	line := prompt.NewLine().ColoredBlock("Git Status", prompt.Cyan).Build()
type LineBuilder struct {
	line Line
}

// NewLine starts a boxed line at level 0.
func NewLine() *LineBuilder {
	return &LineBuilder{line: Line{Kind: Boxed}}
}

// NewFreeLine starts a free line at level 0.
func NewFreeLine() *LineBuilder {
	return &LineBuilder{line: Line{Kind: Free}}
}

// IndentBy raises the level by n. The level never drops below zero.
func (b *LineBuilder) IndentBy(n int) *LineBuilder {
	b.line.Level += n
	if b.line.Level < 0 {
		b.line.Level = 0
	}
	return b
}

// Indent raises the level by one.
func (b *LineBuilder) Indent() *LineBuilder {
	return b.IndentBy(1)
}

// Block appends a block in the default color (magenta).
func (b *LineBuilder) Block(text string) *LineBuilder {
	return b.add(text, Magenta, false)
}

// ShellBlock appends a magenta block the shell expands itself.
func (b *LineBuilder) ShellBlock(text string) *LineBuilder {
	b.line.Blocks = append(b.line.Blocks, Block{Text: text, Color: Magenta, Shell: true})
	return b
}

// Joined appends text in color c inside the previous block's box.
func (b *LineBuilder) Joined(text string, c Color) *LineBuilder {
	b.line.Blocks = append(b.line.Blocks, Block{Text: text, Color: c, Join: true})
	return b
}

// ColoredBlock appends a block in color c.
func (b *LineBuilder) ColoredBlock(text string, c Color) *LineBuilder {
	return b.add(text, c, false)
}

// BoldColoredBlock appends a bold block in color c.
func (b *LineBuilder) BoldColoredBlock(text string, c Color) *LineBuilder {
	return b.add(text, c, true)
}

func (b *LineBuilder) add(text string, c Color, bold bool) *LineBuilder {
	b.line.Blocks = append(b.line.Blocks, Block{Text: text, Color: c, Bold: bold})
	return b
}

// Build returns the finished line. The builder must not be reused.
func (b *LineBuilder) Build() Line {
	line := b.line
	line.Blocks = append([]Block(nil), b.line.Blocks...)
	return line
}
