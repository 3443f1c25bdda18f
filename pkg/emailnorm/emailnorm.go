// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

/*
Package emailnorm canonicalizes email addresses before storage and lookup.

Email uniqueness in Veloria is enforced on the NORMALIZED form, so
"Anna@Example.COM" and "anna@example.com" resolve to the same account.

Rules:

  - The local part is case-folded via the PRECIS UsernameCaseMapped profile
    (RFC 8265), which handles Unicode mailboxes correctly where a naive
    ToLower would not.
  - The domain is ASCII-lowercased.
  - Surrounding whitespace is trimmed.
*/
package emailnorm

import (
	"strings"

	"golang.org/x/text/secure/precis"
)

// Normalize returns the canonical form of an email address.
//
// Inputs that fail PRECIS enforcement (control characters, bidi violations)
// fall back to a plain lowercase so that lookup behavior stays total; such
// values will then fail format validation upstream anyway.
func Normalize(email string) string {
	trimmed := strings.TrimSpace(email)

	at := strings.LastIndex(trimmed, "@")
	if at < 0 {
		return strings.ToLower(trimmed)
	}

	local, domain := trimmed[:at], trimmed[at+1:]

	folded, err := precis.UsernameCaseMapped.String(local)
	if err != nil {
		folded = strings.ToLower(local)
	}

	return folded + "@" + strings.ToLower(domain)
}
