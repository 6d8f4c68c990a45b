package token

import (
	"strings"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	v := Encode(7, "S1")
	if v != "7:S1" {
		t.Fatalf("expected 7:S1, got %s", v)
	}
	version, session, err := Parse(v)
	if err != nil || version != 7 || session != "S1" {
		t.Fatalf("parse: version %d session %s err %v", version, session, err)
	}
}

func TestParseSessionWithColons(t *testing.T) {
	version, session, err := Parse("3:sess:with:colons")
	if err != nil || version != 3 || session != "sess:with:colons" {
		t.Fatalf("parse: version %d session %s err %v", version, session, err)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, v := range []string{"", "noversion", ":S1", "-2:S1", "x:S1"} {
		if _, _, err := Parse(v); err == nil {
			t.Fatalf("expected error for %q", v)
		}
	}
}

func TestNewSessionOpaque(t *testing.T) {
	a, b := NewSession(), NewSession()
	if a == b {
		t.Fatal("expected distinct session identifiers")
	}
	if strings.ContainsRune(a, ':') {
		t.Fatalf("session id must not contain ':': %s", a)
	}
}
