// Package pii detects personally identifiable information in free text and
// decides whether a question/answer pair may be cached.
package pii

import (
	"regexp"
	"sort"
	"strings"
)

type Category string

const (
	Email         Category = "email"
	PhoneUS       Category = "phone_us"
	PhoneIntl     Category = "phone_intl"
	SSN           Category = "ssn"
	CreditCard    Category = "credit_card"
	AccountNumber Category = "account_number"
	IPAddress     Category = "ip_address"
	DateOfBirth   Category = "date_of_birth"
)

// Rule is one row of the detection table. Any match of Pattern fires it;
// card-shaped numbers count even when they are not valid card numbers.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
}

// DefaultRules returns the built-in detection table. All patterns are
// case-insensitive.
func DefaultRules() []Rule {
	return []Rule{
		{Category: Email, Pattern: regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)},
		{Category: PhoneUS, Pattern: regexp.MustCompile(`(?i)\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
		{Category: PhoneIntl, Pattern: regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}\b`)},
		{Category: SSN, Pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{Category: CreditCard, Pattern: regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
		{Category: AccountNumber, Pattern: regexp.MustCompile(`(?i)\b(?:account|acct|member)[\s#:]*\d{6,}\b`)},
		{Category: IPAddress, Pattern: regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
		{Category: DateOfBirth, Pattern: regexp.MustCompile(`(?i)\b(?:dob|birth|born)[\s:]*\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`)},
	}
}

// Scanner is safe for concurrent use.
type Scanner struct {
	rules []Rule
}

// NewScanner uses DefaultRules when rules is empty.
func NewScanner(rules ...Rule) *Scanner {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Scanner{rules: rules}
}

// Scan returns every category found in text, in rule-table order.
func (s *Scanner) Scan(text string) []Category {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var found []Category
	for _, r := range s.rules {
		if r.Pattern.MatchString(text) {
			found = append(found, r.Category)
		}
	}
	return found
}

func (s *Scanner) Contains(text string) bool {
	return len(s.Scan(text)) > 0
}

// Redact replaces every detected value with [REDACTED].
func (s *Scanner) Redact(text string) string {
	type span struct{ start, end int }
	var spans []span
	for _, r := range s.rules {
		for _, loc := range r.Pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, span{loc[0], loc[1]})
		}
	}
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp.start < pos {
			// overlaps a span already redacted
			if sp.end > pos {
				pos = sp.end
			}
			continue
		}
		b.WriteString(text[pos:sp.start])
		b.WriteString("[REDACTED]")
		pos = sp.end
	}
	b.WriteString(text[pos:])
	return b.String()
}
