package discovery

import (
	"testing"
)

func TestSearchByTaskKeyword(t *testing.T) {
	results := Search("book a flight to rome")
	if len(results) == 0 {
		t.Fatal("no results")
	}
	keys := make(map[string]bool)
	for _, api := range results {
		keys[api.Key] = true
	}
	for _, want := range []string{"amadeus", "skyscanner", "kiwi"} {
		if !keys[want] {
			t.Errorf("missing %s in %v", want, keys)
		}
	}
}

func TestSearchBySubstring(t *testing.T) {
	results := Search("stripe")
	if len(results) != 1 || results[0].Key != "stripe" {
		t.Fatalf("results = %+v", results)
	}
}

func TestSearchNoMatch(t *testing.T) {
	if results := Search("underwater basket weaving"); len(results) != 0 {
		t.Errorf("results = %+v", results)
	}
}

func TestBestMatchPrefersOAuthAndTrust(t *testing.T) {
	// gmail: oauth (+10) + google (+5) + docs (+2) = 17, tops any keyword match.
	api, ok := BestMatch("send an email")
	if !ok || api.Key != "gmail" {
		t.Fatalf("best = %+v ok=%v, want gmail", api, ok)
	}

	// All flight APIs use api keys; docs break nothing, key order breaks ties.
	api, ok = BestMatch("flight")
	if !ok {
		t.Fatal("no match")
	}
	if Score(api) != 2 {
		t.Errorf("score = %d, want 2 (api_key + docs)", Score(api))
	}
	if api.Key != "amadeus" {
		t.Errorf("best flight api = %s, want amadeus (tie broken by key)", api.Key)
	}
}

func TestScore(t *testing.T) {
	gmail, _ := Info("gmail")
	if Score(gmail) != 17 {
		t.Errorf("gmail score = %d, want 17", Score(gmail))
	}
	stripe, _ := Info("stripe")
	if Score(stripe) != 7 {
		t.Errorf("stripe score = %d, want 7", Score(stripe))
	}
}

func TestAuthComponent(t *testing.T) {
	cases := map[string]string{
		"gmail":   "auth_google",
		"uber":    "auth_oauth",
		"stripe":  "api_key_input",
		"amadeus": "api_key_input",
	}
	for key, want := range cases {
		api, ok := Info(key)
		if !ok {
			t.Fatalf("missing catalog entry %s", key)
		}
		if got := AuthComponent(api); got != want {
			t.Errorf("AuthComponent(%s) = %s, want %s", key, got, want)
		}
	}
	if got := AuthComponent(APIInfo{AuthType: "none"}); got != "credentials_input" {
		t.Errorf("fallback component = %s", got)
	}
}
