// util/text_test.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"testing"
)

func TestWrapText(t *testing.T) {
	input := "this is a test_with_a_long_line of stuff"
	expected := "this is \n  a \n  test_with_a_long_line \n  of \n  stuff"
	wrap, lines := WrapText(input, 8, 2, false, false)
	if wrap != expected {
		t.Errorf("wrapping gave %q; expected %q", wrap, expected)
	}
	if lines != 5 {
		t.Errorf("wrapping returned %d lines, expected 5", lines)
	}
}

func TestWrapNoSpace(t *testing.T) {
	// Break mid-word when WrapNoSpace is set.
	input := "supercalifragilisticexpialidocious"
	wrap, lines := WrapText(input, 10, 2, false, true)
	expected := "supercalif\n  ragilist\n  icexpial\n  idocious"
	if wrap != expected {
		t.Errorf("WrapNoSpace gave %q; expected %q", wrap, expected)
	}
	if lines != 4 {
		t.Errorf("WrapNoSpace returned %d lines, expected 4", lines)
	}

	// Without WrapNoSpace long words overflow unbroken.
	wrap2, lines2 := WrapText(input, 10, 2, false, false)
	if wrap2 != input {
		t.Errorf("without WrapNoSpace gave %q; expected %q", wrap2, input)
	}
	if lines2 != 1 {
		t.Errorf("without WrapNoSpace returned %d lines, expected 1", lines2)
	}
}

func TestWrapPreformatted(t *testing.T) {
	input := " indented line\nnormal text here"
	expected := " indented line\nnormal \n  text \n  here"
	wrap, lines := WrapText(input, 10, 2, false, false)
	if wrap != expected {
		t.Errorf("wrapping gave %q; expected %q", wrap, expected)
	}
	if lines != 4 {
		t.Errorf("wrapping returned %d lines, expected 4", lines)
	}

	// WrapAll wraps leading-space lines too.
	wrapAll, _ := WrapText(" indented line", 10, 2, true, false)
	expectedAll := " indented \n  line"
	if wrapAll != expectedAll {
		t.Errorf("WrapAll gave %q; expected %q", wrapAll, expectedAll)
	}
}

func TestWrapNoLimit(t *testing.T) {
	input := "one\ntwo\nthree"
	wrap, lines := WrapText(input, 0, 2, false, false)
	if wrap != input {
		t.Errorf("zero limit gave %q; expected input unchanged", wrap)
	}
	if lines != 3 {
		t.Errorf("zero limit returned %d lines, expected 3", lines)
	}
}
