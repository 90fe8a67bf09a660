// ABOUTME: This file normalizes article URLs before storage
// ABOUTME: Tracking parameters, fragments and trailing slashes are stripped

package utils

import (
	"net/url"
	"strings"
)

// trackingParams contains query parameters to remove during normalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"utm_id":       true,
	"fbclid":       true, // Facebook click ID
	"gclid":        true, // Google click ID
	"mc_eid":       true, // MailChimp email ID
	"msclkid":      true, // Microsoft click ID
}

// NormalizeURL strips tracking parameters and the fragment, and trims the
// trailing slash outside the root path, so the same article always stores the
// same URL.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Fragment = ""

	query := parsed.Query()
	for param := range trackingParams {
		query.Del(param)
	}
	parsed.RawQuery = query.Encode()

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}

	return parsed.String(), nil
}
