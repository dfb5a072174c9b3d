package discussions

import (
	"testing"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"no mentions here", nil},
		{"hello @bob", []string{"bob"}},
		{"@Bob is uppercase", []string{"bob"}},
		{"@bob and @alice", []string{"bob", "alice"}},
		{"@bob @bob @BOB", []string{"bob"}},
		{"punctuation @bob, then @alice!", []string{"bob", "alice"}},
		{"email-like a@b stays a mention of b", []string{"b"}},
		{"underscore @dispatch_night ok", []string{"dispatch_night"}},
		{"@ alone is not a mention", nil},
		{"digits @driver42", []string{"driver42"}},
	}

	for _, test := range tests {
		result := ParseMentions(test.input)
		if len(result) != len(test.expected) {
			t.Errorf("ParseMentions(%q) returned %v, expected %v", test.input, result, test.expected)
			continue
		}
		for i, token := range result {
			if token != test.expected[i] {
				t.Errorf("ParseMentions(%q)[%d] = %q, expected %q", test.input, i, token, test.expected[i])
			}
		}
	}
}

func TestParticipantSetKeyIsOrderInsensitive(t *testing.T) {
	a := mustUUID("11111111-1111-1111-1111-111111111111")
	b := mustUUID("22222222-2222-2222-2222-222222222222")
	c := mustUUID("33333333-3333-3333-3333-333333333333")

	k1 := participantSetKey(uuids(a, b, c))
	k2 := participantSetKey(uuids(c, a, b))
	if k1 != k2 {
		t.Errorf("participantSetKey order-sensitive: %q != %q", k1, k2)
	}

	k3 := participantSetKey(uuids(a, b))
	if k1 == k3 {
		t.Errorf("participantSetKey collision between different sets")
	}
}

func TestParticipantSetHashMatchesKey(t *testing.T) {
	a := mustUUID("11111111-1111-1111-1111-111111111111")
	b := mustUUID("22222222-2222-2222-2222-222222222222")

	h1 := participantSetHash(uuids(a, b))
	h2 := participantSetHash(uuids(b, a))
	if h1 != h2 {
		t.Errorf("participantSetHash order-sensitive: %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("participantSetHash length = %d, expected 64 hex chars", len(h1))
	}
}
