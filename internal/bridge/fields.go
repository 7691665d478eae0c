package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/helpdesk"
)

// FieldType tags the runtime-loaded field list. Validation dispatches on the
// tag; unknown template field types collapse to text.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldSelect FieldType = "select"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
)

type FieldSpec struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Prompt   string    `json:"prompt"`
	Options  []string  `json:"options,omitempty"`
}

// Validation failures carry the exact text sent back to the user.
var (
	errFieldRequired = errors.New("This field is required. Please try again.")
	errBadOption     = errors.New("Please select from the options provided.")
	errBadNumber     = errors.New("Please enter a valid number.")
)

// Check validates raw input against the field and returns the value to
// store. The error message, when non-nil, is user-facing.
func (f FieldSpec) Check(input string) (string, error) {
	value := strings.TrimSpace(input)

	if f.Required && value == "" {
		return "", errFieldRequired
	}

	switch f.Type {
	case FieldSelect:
		for _, opt := range f.Options {
			if value == strings.TrimSpace(opt) {
				return value, nil
			}
		}
		return "", errBadOption
	case FieldInt:
		if _, err := strconv.Atoi(value); err != nil {
			return "", errBadNumber
		}
	case FieldFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "", errBadNumber
		}
	}
	return value, nil
}

// PromptText renders the prompt with the optional-skip hint.
func (f FieldSpec) PromptText() string {
	if f.Required {
		return f.Prompt
	}
	return f.Prompt + " (optional, send /skip to skip)"
}

// baseFields returns the two fixed leading fields every run collects.
func baseFields() []FieldSpec {
	return []FieldSpec{
		{
			Key:      "subject",
			Label:    "Subject",
			Type:     FieldText,
			Required: true,
			Prompt:   "What is your issue about? (brief subject line)",
		},
		{
			Key:      "description",
			Label:    "Description",
			Type:     FieldText,
			Required: true,
			Prompt:   "Please describe the issue in detail.",
		},
	}
}

// BuildFields assembles the ordered field list for one collection run:
// subject and description, then the template fields minus customer-hidden
// and duplicate-key entries.
func BuildFields(meta []helpdesk.TemplateField) []FieldSpec {
	fields := baseFields()

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f.Key] = true
	}

	for _, m := range meta {
		if bool(m.HideFromCustomer) || m.Fieldname == "" || seen[m.Fieldname] {
			continue
		}
		seen[m.Fieldname] = true
		fields = append(fields, mapTemplateField(m))
	}
	return fields
}

func mapTemplateField(m helpdesk.TemplateField) FieldSpec {
	label := m.Label
	if label == "" {
		label = m.Fieldname
	}

	prompt := m.Placeholder
	if prompt == "" {
		prompt = fmt.Sprintf("Please provide %s", label)
	}

	f := FieldSpec{
		Key:      m.Fieldname,
		Label:    label,
		Type:     FieldText,
		Required: bool(m.Required),
		Prompt:   prompt,
	}

	switch m.Fieldtype {
	case "Select":
		f.Type = FieldSelect
		for _, opt := range strings.Split(m.Options, "\n") {
			if strings.TrimSpace(opt) != "" {
				f.Options = append(f.Options, opt)
			}
		}
	case "Int":
		f.Type = FieldInt
	case "Float":
		f.Type = FieldFloat
	}
	return f
}

// CollectedData is the answers blob persisted on the conversation state. On
// the wire it is a single flat JSON object: the field specification lives
// under the reserved "_fields" key, every other key is a collected value.
type CollectedData struct {
	Fields []FieldSpec
	Values map[string]string
}

const fieldsKey = "_fields"

func (d CollectedData) MarshalJSON() ([]byte, error) {
	flat := make(map[string]json.RawMessage, len(d.Values)+1)
	if d.Fields != nil {
		raw, err := json.Marshal(d.Fields)
		if err != nil {
			return nil, err
		}
		flat[fieldsKey] = raw
	}
	for k, v := range d.Values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		flat[k] = raw
	}
	return json.Marshal(flat)
}

func (d *CollectedData) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	d.Fields = nil
	d.Values = make(map[string]string)

	for k, raw := range flat {
		if k == fieldsKey {
			if err := json.Unmarshal(raw, &d.Fields); err != nil {
				return err
			}
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		d.Values[k] = v
	}
	return nil
}

func decodeCollected(blob string) (CollectedData, error) {
	if strings.TrimSpace(blob) == "" {
		blob = "{}"
	}
	var d CollectedData
	if err := json.Unmarshal([]byte(blob), &d); err != nil {
		return CollectedData{}, fmt.Errorf("decode collected data: %w", err)
	}
	if d.Values == nil {
		d.Values = make(map[string]string)
	}
	return d, nil
}

func encodeCollected(d CollectedData) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode collected data: %w", err)
	}
	return string(raw), nil
}
