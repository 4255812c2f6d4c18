package domain

import (
	"testing"
)

func TestEmailDomain(t *testing.T) {
	testcases := map[string]string{
		"alice@a.com":   "a.com",
		"bob@sub.b.org": "sub.b.org",
		"no-at-sign":    "",
		"":              "",
		"weird@x@y.com": "x@y.com",
	}
	for email, expected := range testcases {
		if got := EmailDomain(email); got != expected {
			t.Fatalf("%q: expected %q got %q", email, expected, got)
		}
	}
}

func TestRulesToMap(t *testing.T) {
	m := RulesToMap([]MappingRule{
		{Domain: "a.com", ChannelID: "C1"},
		{Domain: "b.org", ChannelID: "C2"},
	})
	if len(m) != 2 || m["a.com"] != "C1" || m["b.org"] != "C2" {
		t.Fatalf("unexpected map: %v", m)
	}
}
