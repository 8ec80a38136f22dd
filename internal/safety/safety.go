// Package safety classifies user requests by risk before the agent acts
// on them and scrubs sensitive material from outbound text.
package safety

import (
	"regexp"
	"strings"
)

// RiskLevel orders request risk from harmless to forbidden.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskBlocked
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskBlocked:
		return "blocked"
	}
	return "safe"
}

// ConfirmationKind tells the orchestrator which recipe to raise.
type ConfirmationKind string

const (
	ConfirmNone     ConfirmationKind = ""
	ConfirmError    ConfirmationKind = "error"
	ConfirmApproval ConfirmationKind = "approval"
	ConfirmStandard ConfirmationKind = "confirmation"
)

// ActionCategory groups actions by the kind of side effect they have.
type ActionCategory string

const (
	CategoryRead         ActionCategory = "read"
	CategoryCreate       ActionCategory = "create"
	CategoryUpdate       ActionCategory = "update"
	CategoryDelete       ActionCategory = "delete"
	CategorySend         ActionCategory = "send"
	CategoryExecute      ActionCategory = "execute"
	CategoryAuthenticate ActionCategory = "auth"
	CategoryFinancial    ActionCategory = "financial"
)

// categoryRules maps keyword sets to a category. First match wins, so the
// more consequential categories are checked first.
var categoryRules = []struct {
	category ActionCategory
	words    []string
}{
	{CategoryDelete, []string{"delete", "remove", "erase"}},
	{CategorySend, []string{"send", "email", "message", "post"}},
	{CategoryFinancial, []string{"pay", "transfer", "purchase", "buy"}},
	{CategoryAuthenticate, []string{"login", "sign in", "authenticate", "connect"}},
	{CategoryExecute, []string{"run", "execute", "trigger"}},
	{CategoryUpdate, []string{"update", "modify", "change", "edit"}},
	{CategoryCreate, []string{"create", "add", "new"}},
}

// CategorizeAction classifies a described action by its side effect.
// Anything that matches no rule is treated as a read.
func CategorizeAction(description string) ActionCategory {
	lower := strings.ToLower(description)
	for _, rule := range categoryRules {
		if containsAny(lower, rule.words) {
			return rule.category
		}
	}
	return CategoryRead
}

// Keyword tables per risk level. Highest matching severity wins.
var riskKeywords = map[RiskLevel][]string{
	RiskBlocked: {
		"rm -rf", "format disk", "delete all", "drop database", "truncate",
	},
	RiskHigh: {
		"delete", "remove", "erase", "destroy", "purge",
		"send email", "pay", "transfer money", "purchase", "buy", "charge",
		"cancel subscription", "terminate", "unsubscribe",
		"share password", "expose",
	},
	RiskMedium: {
		"update", "modify", "change", "edit", "move", "rename", "archive",
		"schedule", "book", "reserve", "reply",
	},
	RiskLow: {
		"draft", "prepare", "create", "save", "store", "read", "fetch", "get",
	},
}

// Patterns that force a block regardless of keyword level.
var blockedActions = []*regexp.Regexp{
	regexp.MustCompile(`delete\s+(all|every|entire)`),
	regexp.MustCompile(`rm\s+-rf`),
	regexp.MustCompile(`format\s+\w+`),
	regexp.MustCompile(`drop\s+(table|database)`),
	regexp.MustCompile(`share\s+(password|secret|key|token)`),
	regexp.MustCompile(`expose\s+(credentials|secrets)`),
}

// Patterns that mark the request as carrying sensitive data.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{16}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`(?i)(?:password|passwd|pwd)\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)api[_\s-]?key\s*[:=]\s*\S+`),
}

// Assessment is the gate's verdict on one request.
type Assessment struct {
	Level                RiskLevel
	Category             ActionCategory
	Reasons              []string
	Sensitive            bool
	RequiresConfirmation bool
	Confirmation         ConfirmationKind
}

// Blocked reports whether the request must not proceed at all.
func (a *Assessment) Blocked() bool {
	return a.Level == RiskBlocked
}

// Assess classifies one user request.
func Assess(text string) *Assessment {
	lower := strings.ToLower(text)
	a := &Assessment{Level: RiskSafe}

	for _, re := range blockedActions {
		if re.MatchString(lower) {
			a.Level = RiskBlocked
			a.Reasons = append(a.Reasons, "blocked pattern: "+re.String())
		}
	}

	if a.Level != RiskBlocked {
		for _, level := range []RiskLevel{RiskBlocked, RiskHigh, RiskMedium, RiskLow} {
			matched := false
			for _, kw := range riskKeywords[level] {
				if strings.Contains(lower, kw) {
					a.Reasons = append(a.Reasons, "keyword: "+kw)
					matched = true
				}
			}
			if matched {
				a.Level = level
				break
			}
		}
	}

	for _, re := range sensitivePatterns {
		if re.MatchString(text) {
			a.Sensitive = true
			a.Reasons = append(a.Reasons, "sensitive data present")
			// Sensitive data raises the floor to medium.
			if a.Level < RiskMedium {
				a.Level = RiskMedium
			}
			break
		}
	}

	a.Category = CategorizeAction(text)
	a.RequiresConfirmation = RequiresConfirmation(a.Level, a.Category)
	if a.RequiresConfirmation {
		a.Confirmation = ConfirmationFor(a.Level, a.Category)
	}
	return a
}

// mediumConfirmCategories are the side effects worth a confirmation even
// at medium risk.
var mediumConfirmCategories = map[ActionCategory]bool{
	CategoryDelete:    true,
	CategorySend:      true,
	CategoryFinancial: true,
	CategoryExecute:   true,
}

// RequiresConfirmation decides whether the user must confirm before the
// action proceeds. Blocked and high risk always confirm; medium confirms
// for the consequential categories; deletions and financial actions
// confirm regardless of risk.
func RequiresConfirmation(level RiskLevel, category ActionCategory) bool {
	switch level {
	case RiskBlocked, RiskHigh:
		return true
	case RiskMedium:
		if mediumConfirmCategories[category] {
			return true
		}
	}
	return category == CategoryDelete || category == CategoryFinancial
}

// ConfirmationFor picks the recipe style for a confirmed action.
func ConfirmationFor(level RiskLevel, category ActionCategory) ConfirmationKind {
	if level == RiskBlocked {
		return ConfirmError
	}
	if level == RiskHigh || category == CategoryFinancial {
		return ConfirmApproval
	}
	return ConfirmStandard
}

// Stricter returns whichever assessment carries the higher risk. Either
// side may be nil. On a tie the one demanding confirmation wins.
func Stricter(a, b *Assessment) *Assessment {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Level > a.Level {
		return b
	}
	if b.Level == a.Level && b.RequiresConfirmation && !a.RequiresConfirmation {
		return b
	}
	return a
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
