package discovery

import (
	"sort"
	"strings"
)

// trustedProviders get a scoring boost in BestMatch.
var trustedProviders = map[string]bool{
	"google":    true,
	"apple":     true,
	"microsoft": true,
	"stripe":    true,
}

// Info returns the catalog entry for a key, or false.
func Info(key string) (APIInfo, bool) {
	api, ok := knownAPIs[strings.ToLower(key)]
	return api, ok
}

// Search returns catalog entries matching the query: task keyword routes
// first, then substring matches on name and description. Results are
// deduplicated and ordered deterministically by key.
func Search(query string) []APIInfo {
	queryLower := strings.ToLower(query)
	seen := make(map[string]bool)
	var results []APIInfo

	add := func(key string) {
		if seen[key] {
			return
		}
		if api, ok := knownAPIs[key]; ok {
			seen[key] = true
			results = append(results, api)
		}
	}

	for keyword, keys := range taskKeywords {
		if strings.Contains(queryLower, keyword) {
			for _, key := range keys {
				add(key)
			}
		}
	}
	for key, api := range knownAPIs {
		if strings.Contains(strings.ToLower(api.Name), queryLower) ||
			strings.Contains(strings.ToLower(api.Description), queryLower) {
			add(key)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results
}

// Score ranks a catalog entry: OAuth beats raw keys, trusted providers
// beat unknowns, documented APIs beat undocumented ones.
func Score(api APIInfo) int {
	score := 0
	if api.AuthType == "oauth" {
		score += 10
	}
	if trustedProviders[api.Provider] {
		score += 5
	}
	if api.DocsURL != "" {
		score += 2
	}
	return score
}

// BestMatch returns the highest-scoring entry for the query, or false
// when nothing matches. Ties break on catalog key for determinism.
func BestMatch(query string) (APIInfo, bool) {
	results := Search(query)
	if len(results) == 0 {
		return APIInfo{}, false
	}
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := Score(results[i]), Score(results[j])
		if si != sj {
			return si > sj
		}
		return results[i].Key < results[j].Key
	})
	return results[0], true
}

// AuthComponent picks the UI component kind that collects credentials for
// the entry.
func AuthComponent(api APIInfo) string {
	switch api.AuthType {
	case "oauth":
		switch api.OAuthProvider {
		case "google":
			return "auth_google"
		case "apple":
			return "auth_apple"
		default:
			return "auth_oauth"
		}
	case "api_key":
		return "api_key_input"
	default:
		return "credentials_input"
	}
}
