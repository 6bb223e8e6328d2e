package id

import "testing"

func TestNew(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if !Valid(a) {
		t.Fatalf("expected %s to be valid", a)
	}
	if Valid("stylize_session") || Valid("") {
		t.Fatal("expected malformed ids to be rejected")
	}
}
