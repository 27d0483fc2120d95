package domain

import (
	"encoding/json"
	"sort"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Issues maps an error code to the entities it affects. An empty entity
// list means the issue is not tied to a specific entity. The zero value is
// ready to use.
type Issues struct {
	byCode map[string][]string
}

// Add records code for entities, appending to any entities already
// recorded for the same code.
func (i *Issues) Add(code string, entities ...string) {
	if i.byCode == nil {
		i.byCode = make(map[string][]string)
	}
	existing, ok := i.byCode[code]
	if !ok {
		existing = make([]string, 0, len(entities))
	}
	i.byCode[code] = append(existing, entities...)
}

func (i *Issues) Merge(other *Issues) {
	if other == nil {
		return
	}
	for code, entities := range other.byCode {
		i.Add(code, entities...)
	}
}

func (i *Issues) Empty() bool {
	return i == nil || len(i.byCode) == 0
}

func (i *Issues) Has(code string) bool {
	if i == nil {
		return false
	}
	_, ok := i.byCode[code]
	return ok
}

// Entities returns a copy of the entities recorded for code.
func (i *Issues) Entities(code string) []string {
	if i == nil {
		return nil
	}
	entities, ok := i.byCode[code]
	if !ok {
		return nil
	}
	return append([]string{}, entities...)
}

// Codes returns the recorded codes in sorted order.
func (i *Issues) Codes() []string {
	if i == nil {
		return nil
	}
	codes := make([]string, 0, len(i.byCode))
	for code := range i.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// BySeverity partitions the issues for presentation. Every issue raised by
// actions is an error.
func (i *Issues) BySeverity() map[Severity]map[string][]string {
	if i.Empty() {
		return nil
	}
	byCode := make(map[string][]string, len(i.byCode))
	for code, entities := range i.byCode {
		byCode[code] = append([]string{}, entities...)
	}
	return map[Severity]map[string][]string{SeverityError: byCode}
}

func (i Issues) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.BySeverity())
}

func (i *Issues) UnmarshalJSON(data []byte) error {
	var partitioned map[Severity]map[string][]string
	if err := json.Unmarshal(data, &partitioned); err != nil {
		return err
	}
	i.byCode = nil
	for _, byCode := range partitioned {
		for code, entities := range byCode {
			i.Add(code, entities...)
		}
	}
	return nil
}
