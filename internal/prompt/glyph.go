package prompt

// Connector flags. A glyph is chosen by which of its four arms are drawn.
const (
	Top    = 8
	Bottom = 4
	Left   = 2
	Right  = 1
)

// Glyph returns the box-drawing character for a combination of connector
// flags. Combinations without a matching character render as a space.
func Glyph(flags int) rune {
	switch flags {
	case Top | Bottom | Left | Right:
		return '┼'
	case Top | Bottom | Left:
		return '┤'
	case Top | Bottom | Right:
		return '├'
	case Top | Bottom:
		return '│'
	case Top | Left | Right:
		return '┴'
	case Top | Left:
		return '┘'
	case Top | Right:
		return '└'
	case Bottom | Left:
		return '┐'
	case Bottom | Right:
		return '┌'
	case Bottom | Left | Right:
		return '┬'
	case Left | Right:
		return '─'
	default:
		return ' '
	}
}

// trailOff is the connector tail drawn after a boxed line.
func trailOff() string {
	tail := make([]rune, 10)
	for i := range tail {
		tail[i] = Glyph(Left | Right)
	}
	return string(tail)
}
