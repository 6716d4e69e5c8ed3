package featureflags

import "testing"

func TestEnabled(t *testing.T) {
	cases := map[string]bool{
		"true": true, "1": true, "YES": true, " on ": true,
		"": false, "false": false, "0": false, "maybe": false,
	}
	for v, want := range cases {
		t.Setenv("FLAG_TRUST_CLIENT_SLUG", v)
		if got := Enabled(TrustClientSlug); got != want {
			t.Errorf("FLAG_TRUST_CLIENT_SLUG=%q: got %v, want %v", v, got, want)
		}
	}
}
