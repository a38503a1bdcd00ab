package prompt

import "strings"

// Renderer lays lines out as a tree diagram using one dialect's escapes.
// The zero value renders with the bash dialect.
type Renderer struct {
	Dialect Dialect
	// Path fills the header for dialects without a cwd expansion.
	Path string
}

func (r Renderer) dialect() Dialect {
	if r.Dialect.Name == "" {
		return Bash
	}
	return r.Dialect
}

// Render prepends the header line to lines and lays out the result.
func (r Renderer) Render(lines []Line) string {
	all := make([]Line, 0, len(lines)+1)
	all = append(all, r.dialect().Header(r.Path))
	all = append(all, lines...)
	return r.Layout(all)
}

// Layout joins lines into the diagram and appends the marker row. It never
// fails and has no side effects.
func (r Renderer) Layout(lines []Line) string {
	d := r.dialect()
	var sb strings.Builder

	for ix, line := range lines {
		current := line.Level
		after, start, end := 0, 0, current
		if ix+1 < len(lines) {
			after = lines[ix+1].Level
			start, end = min(current, after), max(current, after)
		}

		sb.WriteString(strings.Repeat(" ", start))

		for i := start; i <= end; i++ {
			flags := 0
			if i == current && ix > 0 {
				flags |= Top
			}
			if i == after {
				flags |= Bottom
			}
			if i > start {
				flags |= Left
			}
			if line.Kind == Boxed || i != current {
				flags |= Right
			}
			sb.WriteRune(Glyph(flags))
		}

		for i, b := range line.Blocks {
			opens := i == 0 || !b.Join
			closes := i+1 == len(line.Blocks) || !line.Blocks[i+1].Join
			switch {
			case line.Kind == Boxed:
				if opens {
					sb.WriteRune(Glyph(Left | Right))
					sb.WriteRune(Glyph(Left | Top | Bottom))
				}
				sb.WriteString(d.Format(b))
				if closes {
					sb.WriteRune(Glyph(Top | Bottom | Right))
				}
			case opens:
				sb.WriteByte(' ')
				sb.WriteString(d.Format(b))
			default:
				sb.WriteString(d.Format(b))
			}
		}

		if line.Kind == Boxed {
			sb.WriteString(trailOff())
		}
		sb.WriteByte('\n')
	}

	sb.WriteRune(Glyph(Top | Right))
	sb.WriteRune(Glyph(Left | Right))
	sb.WriteString(d.Format(Block{Text: d.Marker, Color: Red, Shell: true}))
	sb.WriteByte(' ')
	return sb.String()
}

// Render renders lines with the bash dialect.
func Render(lines []Line) string {
	return Renderer{}.Render(lines)
}

// Layout lays lines out with the bash dialect, without the header.
func Layout(lines []Line) string {
	return Renderer{}.Layout(lines)
}
