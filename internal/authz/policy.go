// Package authz holds the admin authorization policy: a configured set of
// privileged email addresses injected at startup. The gate keeps the admin
// console out of casual reach; it is not a security boundary, since the
// document store itself enforces nothing.
package authz

import "strings"

// Policy answers whether an identity may use admin operations.
type Policy struct {
	admins map[string]struct{}
}

// NewPolicy builds a Policy from the configured admin email list. Emails are
// compared case-insensitively.
func NewPolicy(adminEmails []string) *Policy {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Policy{admins: admins}
}

// IsAdmin reports whether the email is on the allow-list.
func (p *Policy) IsAdmin(email string) bool {
	_, ok := p.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Len returns the number of configured admins.
func (p *Policy) Len() int { return len(p.admins) }
