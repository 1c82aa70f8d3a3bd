// util/text.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"strings"
)

// TextWrapConfig controls WrapText. Input lines that begin with a space
// are treated as preformatted and passed through unless WrapAll is set.
type TextWrapConfig struct {
	ColumnLimit int
	Indent      int  // spaces prepended to wrapped continuation lines
	WrapAll     bool // also wrap lines that start with a space
	WrapNoSpace bool // break mid-word rather than overflowing long words
}

// Wrap returns s wrapped to the configured column limit and the number of
// physical lines in the result. The indent counts against the column limit
// on continuation lines.
func (cfg TextWrapConfig) Wrap(s string) (string, int) {
	if cfg.ColumnLimit <= 0 {
		return s, strings.Count(s, "\n") + 1
	}

	contWidth := cfg.ColumnLimit - cfg.Indent
	if contWidth <= 0 {
		contWidth = 1
	}
	indent := strings.Repeat(" ", cfg.Indent)

	var out []string
	for _, line := range strings.Split(s, "\n") {
		if !cfg.WrapAll && strings.HasPrefix(line, " ") {
			out = append(out, line)
			continue
		}

		rem := []rune(line)
		width := cfg.ColumnLimit
		first := true
		for {
			n := cfg.breakAt(rem, width)
			if first {
				out = append(out, string(rem[:n]))
				first = false
			} else {
				out = append(out, indent+string(rem[:n]))
			}
			rem = rem[n:]
			if len(rem) == 0 {
				break
			}
			width = contWidth
		}
	}

	return strings.Join(out, "\n"), len(out)
}

// breakAt returns how many runes of rem go on the current physical line.
func (cfg TextWrapConfig) breakAt(rem []rune, width int) int {
	if len(rem) <= width {
		return len(rem)
	}
	if cfg.WrapNoSpace {
		return width
	}
	// Break after the last space that keeps the line within the limit; the
	// space stays on the line it ends.
	for i := width; i >= 0; i-- {
		if rem[i] == ' ' {
			return i + 1
		}
	}
	// A word longer than the limit overflows until the next space.
	for i := width + 1; i < len(rem); i++ {
		if rem[i] == ' ' {
			return i + 1
		}
	}
	return len(rem)
}

// WrapText wraps s to columnLimit columns, indenting continuation lines by
// indent spaces. It returns the wrapped text and its line count.
func WrapText(s string, columnLimit int, indent int, wrapAll bool, noSpace bool) (string, int) {
	return TextWrapConfig{
		ColumnLimit: columnLimit,
		Indent:      indent,
		WrapAll:     wrapAll,
		WrapNoSpace: noSpace,
	}.Wrap(s)
}
