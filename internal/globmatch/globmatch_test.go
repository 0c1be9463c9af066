package globmatch

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/forbidden", "/forbidden", true},
		{"/forbidden", "/other", false},
		{"*", "/anything", true},
		{"/dir/*", "/dir/file", true},
		{"/dir/*", "/dir/sub/file", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.path); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestMatch_MalformedPatternNeverMatches(t *testing.T) {
	if Match("[", "[") {
		t.Error("malformed pattern must never match")
	}
}

func TestValid(t *testing.T) {
	if !Valid("/dir/*") {
		t.Error("expected /dir/* to be a valid pattern")
	}
	if Valid("[") {
		t.Error("expected [ to be an invalid pattern")
	}
}
