package instrumentation

import (
	"slices"
	"strings"
)

// ExtractUserDomain returns the domain part of an email address, or "unknown".
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "unknown"
	}
	return strings.ToLower(domain)
}

// RecipientDomains returns the sorted, de-duplicated domains of emails.
// Share audit records use it instead of the addresses themselves.
func RecipientDomains(emails []string) []string {
	domains := make([]string, 0, len(emails))
	for _, e := range emails {
		domains = append(domains, ExtractUserDomain(e))
	}
	slices.Sort(domains)
	return slices.Compact(domains)
}
