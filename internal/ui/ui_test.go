package ui

import (
	"bytes"
	"testing"
)

func TestPlainOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	u := New(&out, &errOut, ColorAlways, true)
	if u.ColorEnabled {
		t.Fatalf("disableColor must win over --color=always")
	}
	u.Infof("sent %d emails\n", 3)
	u.Warnf("skipped")
	if out.String() != "sent 3 emails\n" || errOut.String() != "skipped\n" {
		t.Fatalf("unexpected output %q %q", out.String(), errOut.String())
	}
	if u.LinkText("https://x") != "https://x" {
		t.Fatalf("link text should be plain without colour")
	}
}

func TestProgressOffTerminal(t *testing.T) {
	var errOut bytes.Buffer
	u := New(&bytes.Buffer{}, &errOut, ColorNever, false)
	stop := u.Progress("Scraping")
	stop()
	if errOut.Len() != 0 {
		t.Fatalf("spinner must not draw off a terminal, got %q", errOut.String())
	}
}

func TestNormalizeColorMode(t *testing.T) {
	cases := map[string]ColorMode{"ALWAYS": ColorAlways, " never ": ColorNever, "": ColorAuto, "bogus": ColorAuto}
	for in, want := range cases {
		if got := NormalizeColorMode(in); got != want {
			t.Fatalf("NormalizeColorMode(%q) = %q", in, got)
		}
	}
}
