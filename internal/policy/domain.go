package policy

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email has the shape local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// LocalPart returns the part of email before the last '@'.
func LocalPart(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return email
	}
	return email[:i]
}

// EmailDomain returns the lowercased part of email after the last '@'.
func EmailDomain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}

// DomainListed reports whether the domain of email is one of domains.
func DomainListed(domains []string, email string) bool {
	domain := EmailDomain(email)
	if domain == "" {
		return false
	}
	for _, d := range domains {
		if strings.EqualFold(strings.TrimSpace(d), domain) {
			return true
		}
	}
	return false
}

// DomainPermitted evaluates a role's allowed-domain expression against the
// domain of email.
//
// The expression is a comma-separated list of glob patterns where '.' is the
// segment separator, so "*.corp.test" matches "eu.corp.test" but not
// "a.eu.corp.test" (use "**.corp.test" for that). An empty expression permits
// every domain. Malformed patterns never match.
func DomainPermitted(expr, email string) bool {
	domain := EmailDomain(email)
	if domain == "" {
		return false
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}

	for _, raw := range strings.Split(expr, ",") {
		pattern := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			continue
		}
		if g.Match(domain) {
			return true
		}
	}
	return false
}
