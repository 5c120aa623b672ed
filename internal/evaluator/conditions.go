package evaluator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/virtualpaper/console/internal/domain"
)

// matchCondition evaluates one enabled condition of a known type, ignoring inverted
func matchCondition(c domain.Condition, doc *domain.Document) (bool, []string) {
	spec, _ := domain.LookupCondition(c.ConditionType)

	switch {
	case spec.TextModifiers:
		return matchText(c, subjectText(c.ConditionType, doc))
	case spec.NeedsDateFmt:
		return matchDate(c, doc)
	case spec.NumericValue:
		return matchCount(c, doc)
	case c.ConditionType == domain.ConditionMetadataHasKeyValue:
		ok := doc.HasKeyValue(c.Metadata.KeyID, c.Metadata.ValueID)
		return ok, []string{fmt.Sprintf("metadata key %d with value %d present: %t", c.Metadata.KeyID, c.Metadata.ValueID, ok)}
	case c.ConditionType == domain.ConditionMetadataHasKey:
		ok := doc.HasKey(c.Metadata.KeyID)
		return ok, []string{fmt.Sprintf("metadata key %d present: %t", c.Metadata.KeyID, ok)}
	}
	return false, []string{fmt.Sprintf("no evaluation for condition type %q", c.ConditionType)}
}

func subjectText(t domain.ConditionType, doc *domain.Document) string {
	switch t.Subject() {
	case "name":
		return doc.Name
	case "description":
		return doc.Description
	default:
		return doc.Content
	}
}

// textOp returns is, starts or contains
func textOp(t domain.ConditionType) string {
	_, op, _ := strings.Cut(string(t), "_")
	return op
}

func matchText(c domain.Condition, subject string) (bool, []string) {
	op := textOp(c.ConditionType)
	field := c.ConditionType.Subject()

	if c.IsRegex {
		pattern := c.Value
		switch op {
		case "is":
			pattern = `^(?:` + pattern + `)$`
		case "starts":
			pattern = `^(?:` + pattern + `)`
		}
		if c.CaseInsensitive {
			pattern = `(?i)` + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, []string{fmt.Sprintf("invalid regular expression: %s", err)}
		}
		loc := re.FindStringIndex(subject)
		if loc == nil {
			return false, []string{fmt.Sprintf("%s does not match /%s/", field, c.Value)}
		}
		return true, []string{fmt.Sprintf("%s matches /%s/ at %d: %q", field, c.Value, loc[0], subject[loc[0]:loc[1]])}
	}

	value := c.Value
	if c.CaseInsensitive {
		subject = strings.ToLower(subject)
		value = strings.ToLower(value)
	}

	var ok bool
	switch op {
	case "is":
		ok = subject == value
	case "starts":
		ok = strings.HasPrefix(subject, value)
	default:
		ok = strings.Contains(subject, value)
	}

	verb := map[string]string{"is": "is", "starts": "starts with", "contains": "contains"}[op]
	if ok {
		return true, []string{fmt.Sprintf("%s %s %q", field, verb, c.Value)}
	}
	return false, []string{fmt.Sprintf("%s does not satisfy %q %q", field, verb, c.Value)}
}

// matchDate extracts the first date matching value from the content, parses it
// with date_fmt and compares it to the document date by calendar day
func matchDate(c domain.Condition, doc *domain.Document) (bool, []string) {
	re, err := regexp.Compile(c.Value)
	if err != nil {
		return false, []string{fmt.Sprintf("invalid date pattern: %s", err)}
	}
	raw := re.FindString(doc.Content)
	if raw == "" {
		return false, []string{fmt.Sprintf("no date matching /%s/ in content", c.Value)}
	}
	found, err := time.Parse(c.DateFmt, raw)
	if err != nil {
		return false, []string{fmt.Sprintf("cannot parse %q with format %q", raw, c.DateFmt)}
	}

	extracted := day(found)
	docDay := day(doc.Time())

	var ok bool
	switch c.ConditionType {
	case domain.ConditionDateAfter:
		ok = extracted.After(docDay)
	case domain.ConditionDateBefore:
		ok = extracted.Before(docDay)
	default:
		ok = extracted.Equal(docDay)
	}
	return ok, []string{fmt.Sprintf("found date %s, document date %s", extracted.Format(time.DateOnly), docDay.Format(time.DateOnly))}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func matchCount(c domain.Condition, doc *domain.Document) (bool, []string) {
	want, err := strconv.Atoi(strings.TrimSpace(c.Value))
	if err != nil {
		return false, []string{fmt.Sprintf("value %q is not an integer", c.Value)}
	}
	count := len(doc.Metadata)

	var ok bool
	switch c.ConditionType {
	case domain.ConditionMetadataCountLessThan:
		ok = count < want
	case domain.ConditionMetadataCountMoreThan:
		ok = count > want
	default:
		ok = count == want
	}
	return ok, []string{fmt.Sprintf("document has %d metadata values, compared with %d", count, want)}
}
