// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package fault

import (
	"net/url"
	"sort"
	"strings"
)

// Redacted replaces sensitive values in redacted output.
const Redacted = "REDACTED"

// RedactURL returns a string form of u that is safe to log or embed in
// an error message. User information is dropped, and the value of every
// query parameter whose name is not in allowed is replaced by Redacted.
// Allowed names are matched case-insensitively.
//
// A nil URL yields the empty string.
func RedactURL(u *url.URL, allowed ...string) string {
	if u == nil {
		return ""
	}
	r := *u
	r.User = nil
	if r.RawQuery != "" {
		q := r.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			keep := isAllowed(k, allowed)
			for _, v := range q[k] {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				if keep {
					b.WriteString(url.QueryEscape(v))
				} else {
					b.WriteString(Redacted)
				}
			}
		}
		r.RawQuery = b.String()
	}
	return r.String()
}

func isAllowed(name string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
