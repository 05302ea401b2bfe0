package helpers

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainPolicyOnce sync.Once
	plainPolicy     *bluemonday.Policy

	documentPolicyOnce sync.Once
	documentPolicy     *bluemonday.Policy
)

// PlainTextPolicy strips every element and attribute.
func PlainTextPolicy() *bluemonday.Policy {
	plainPolicyOnce.Do(func() {
		plainPolicy = bluemonday.StrictPolicy()
	})
	return plainPolicy
}

// DocumentPolicy allows the markup produced by rendering an attention
// document (headings, paragraphs, lists, code, links) and nothing that can
// execute in the browser.
func DocumentPolicy() *bluemonday.Policy {
	documentPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowAttrs("class").OnElements("code", "pre")
		policy.AllowURLSchemes("http", "https", "mailto")
		policy.RequireParseableURLs(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
		documentPolicy = policy
	})
	return documentPolicy
}

// PlainText removes all HTML from user supplied text before it is placed in
// a prompt.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(PlainTextPolicy().Sanitize(s))
}

// SanitizeDocument cleans rendered HTML with DocumentPolicy.
func SanitizeDocument(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	return strings.TrimSpace(DocumentPolicy().Sanitize(html))
}
