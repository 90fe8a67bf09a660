// ABOUTME: This file sanitizes remote feed HTML before it is stored
// ABOUTME: UGC policy with nofollow and target=_blank forced onto links

package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips dangerous markup from remote article bodies.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer over bluemonday's UGC policy, which keeps
// standard article markup and drops script, iframe, object and friends.
func NewSanitizer() *Sanitizer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Sanitizer{policy: policy}
}

// SanitizeHTML sanitizes the given HTML fragment.
func (s *Sanitizer) SanitizeHTML(content string) string {
	if content == "" {
		return ""
	}
	return s.policy.Sanitize(content)
}

// SanitizeAndTrim sanitizes and trims surrounding whitespace.
func (s *Sanitizer) SanitizeAndTrim(content string) string {
	return strings.TrimSpace(s.SanitizeHTML(content))
}
