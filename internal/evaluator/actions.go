package evaluator

import (
	"fmt"
	"strings"
	"time"

	"github.com/virtualpaper/console/internal/domain"
)

// dateLayouts are tried in order for date_set values
var dateLayouts = []string{time.DateOnly, time.RFC3339, "2006-01-02 15:04:05"}

// applyAction mutates doc and describes the change
func applyAction(a domain.Action, doc *domain.Document) ([]string, error) {
	switch a.Action {
	case domain.ActionNameSet:
		before := doc.Name
		doc.Name = a.Value
		return []string{fmt.Sprintf("name %q -> %q", before, doc.Name)}, nil
	case domain.ActionNameAppend:
		doc.Name += a.Value
		return []string{fmt.Sprintf("name is now %q", doc.Name)}, nil
	case domain.ActionDescriptionSet:
		doc.Description = a.Value
		return []string{fmt.Sprintf("description set to %q", doc.Description)}, nil
	case domain.ActionDescriptionAppend:
		if doc.Description != "" && !strings.HasSuffix(doc.Description, "\n") {
			doc.Description += "\n"
		}
		doc.Description += a.Value
		return []string{fmt.Sprintf("description is now %q", doc.Description)}, nil
	case domain.ActionMetadataAdd:
		if doc.HasKeyValue(a.Metadata.KeyID, a.Metadata.ValueID) {
			return []string{fmt.Sprintf("metadata %d:%d already present", a.Metadata.KeyID, a.Metadata.ValueID)}, nil
		}
		doc.Metadata = append(doc.Metadata, domain.DocumentMetadata{KeyID: a.Metadata.KeyID, ValueID: a.Metadata.ValueID})
		return []string{fmt.Sprintf("added metadata %d:%d", a.Metadata.KeyID, a.Metadata.ValueID)}, nil
	case domain.ActionMetadataRemove:
		kept := doc.Metadata[:0]
		removed := 0
		for _, m := range doc.Metadata {
			if m.KeyID == a.Metadata.KeyID {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		doc.Metadata = kept
		return []string{fmt.Sprintf("removed %d values of metadata key %d", removed, a.Metadata.KeyID)}, nil
	case domain.ActionDateSet:
		t, err := parseDate(a.Value)
		if err != nil {
			return nil, err
		}
		doc.SetTime(t)
		return []string{fmt.Sprintf("date set to %s", t.Format(time.DateOnly))}, nil
	}
	return nil, fmt.Errorf("no evaluation for action type %q", a.Action)
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", value)
}
