package pii

import (
	"slices"
	"testing"
)

func TestScan(t *testing.T) {
	s := NewScanner()

	tests := []struct {
		name string
		text string
		want Category // "" means no findings at all
	}{
		{"no PII", "What is the weather like today?", ""},
		{"plain support question", "How do I reset my password?", ""},
		{"empty", "", ""},
		{"email", "Contact me at john.doe@example.com for more info", Email},
		{"email upper case", "MAIL JOHN.DOE@EXAMPLE.COM", Email},
		{"us phone", "Call me at 555-123-4567", PhoneUS},
		{"intl phone", "My number is +44 20 7946 0958", PhoneIntl},
		{"ssn", "My SSN is 123-45-6789", SSN},
		{"credit card", "Use card 4532015112830366", CreditCard},
		{"credit card with spaces", "card 4111 1111 1111 1111 please", CreditCard},
		{"account number", "My Account #12345678 was charged", AccountNumber},
		{"ip address", "Server at 192.168.1.1", IPAddress},
		{"date of birth", "I was born 01/02/1990", DateOfBirth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Scan(tt.text)
			if tt.want == "" {
				if len(got) != 0 {
					t.Errorf("Scan(%q) = %v, want none", tt.text, got)
				}
				return
			}
			if !slices.Contains(got, tt.want) {
				t.Errorf("Scan(%q) = %v, want it to contain %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestCardShapedNumbersAreNeverCached(t *testing.T) {
	s := NewScanner()

	// not a valid card number, still reported
	for _, text := range []string{
		"my card is 4111 1111 1111 1112",
		"order 4532015112830367",
	} {
		if got := s.Scan(text); !slices.Contains(got, CreditCard) {
			t.Errorf("Scan(%q) = %v, want credit_card", text, got)
		}
	}

	d := s.PermitsCache("charge my card 4111-1111-1111-1112 please", "ok")
	if d.Allow {
		t.Fatalf("card-shaped number admitted to the cache: %s", d.Reason)
	}
	if d.Source != SourceQuery || !slices.Contains(d.Categories, CreditCard) {
		t.Errorf("decision = %+v", d)
	}
	if got := s.Redact("card 4111-1111-1111-1112"); got != "card [REDACTED]" {
		t.Errorf("Redact = %q", got)
	}
}

func TestScanIsExhaustive(t *testing.T) {
	s := NewScanner()
	got := s.Scan("reach me at jane@example.org, SSN 123-45-6789, from 10.0.0.1")
	for _, want := range []Category{Email, SSN, IPAddress} {
		if !slices.Contains(got, want) {
			t.Errorf("expected %s in %v", want, got)
		}
	}
}

func TestPermitsCache(t *testing.T) {
	s := NewScanner()

	tests := []struct {
		name       string
		query      string
		response   string
		allow      bool
		source     string
		wantReason string
	}{
		{
			name:       "clean pair",
			query:      "How do I reset my password?",
			response:   "Open Account settings and choose Reset password.",
			allow:      true,
			wantReason: "No PII detected",
		},
		{
			name:       "pii in query",
			query:      "My email is john@example.com, how do I reset my password?",
			response:   "Open Account settings.",
			source:     SourceQuery,
			wantReason: "PII detected in query: email",
		},
		{
			name:       "pii in response",
			query:      "What is on file for me?",
			response:   "Your SSN on file is 123-45-6789.",
			source:     SourceResponse,
			wantReason: "PII detected in response: ssn",
		},
		{
			name:       "query reported before response",
			query:      "My SSN is 123-45-6789",
			response:   "We emailed john@example.com",
			source:     SourceQuery,
			wantReason: "PII detected in query: ssn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := s.PermitsCache(tt.query, tt.response)
			if d.Allow != tt.allow {
				t.Fatalf("Allow = %v, want %v (%s)", d.Allow, tt.allow, d.Reason)
			}
			if d.Source != tt.source {
				t.Errorf("Source = %q, want %q", d.Source, tt.source)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	s := NewScanner()

	got := s.Redact("email me at a@b.co or call 555-123-4567")
	want := "email me at [REDACTED] or call [REDACTED]"
	if got != want {
		t.Errorf("Redact = %q, want %q", got, want)
	}

	clean := "nothing to hide here"
	if got := s.Redact(clean); got != clean {
		t.Errorf("Redact changed clean text: %q", got)
	}
}
