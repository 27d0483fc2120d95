package domain

import (
	"bytes"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var localePattern = regexp.MustCompile(`^[A-Za-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)

// ValidateSubmissionRequest returns the rules the request violates.
func ValidateSubmissionRequest(req SubmissionRequest, now time.Time) []string {
	failed := make([]string, 0)

	if strings.TrimSpace(req.Subject) == "" {
		failed = append(failed, "submission.subject_required")
	}
	if !localePattern.MatchString(req.SourceLocale) {
		failed = append(failed, "submission.source_locale_valid")
	}
	if len(req.TargetLocales) == 0 {
		failed = append(failed, "submission.target_locales_required")
	}

	seen := make(map[string]struct{}, len(req.TargetLocales))
	for _, locale := range req.TargetLocales {
		if !localePattern.MatchString(locale) {
			failed = append(failed, "submission.target_locale_valid")
			continue
		}
		key := strings.ToLower(locale)
		if key == strings.ToLower(req.SourceLocale) {
			failed = append(failed, "submission.target_differs_from_source")
		}
		if _, dup := seen[key]; dup {
			failed = append(failed, "submission.target_locales_unique")
		}
		seen[key] = struct{}{}
	}

	if req.DueDate.IsZero() {
		failed = append(failed, "submission.due_date_required")
	} else if !req.DueDate.After(now) {
		failed = append(failed, "submission.due_date_in_future")
	}

	return failed
}

// IsTranslatablePayload accepts UTF-8 XML documents, which is what the
// export pipeline produces (XLIFF). Binary uploads and plain text are
// refused before they reach the provider.
func IsTranslatablePayload(body []byte) bool {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 || !utf8.Valid(trimmed) {
		return false
	}
	if trimmed[0] != '<' {
		return false
	}
	if bytes.ContainsRune(trimmed, 0) {
		return false
	}
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.Contains(trimmed, []byte("<xliff"))
}
