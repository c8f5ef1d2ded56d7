package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"timetable-backend/internal/model"
)

// Result keys of the envelope shape, selected by identity kind.
const (
	GroupResultKey   = "GetRaspGroupResult"
	TeacherResultKey = "GetRaspPrepResult"
	itemsKey         = "RaspItem"
)

// ErrUnexpectedShape reports a payload matching none of the known shapes.
var ErrUnexpectedShape = errors.New("unexpected payload shape")

// NormalizationError describes why a payload could not be normalized.
type NormalizationError struct {
	Identity string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize payload for %q: %s: %s", e.Identity, ErrUnexpectedShape, e.Reason)
}

func (e *NormalizationError) Unwrap() error {
	return ErrUnexpectedShape
}

// Shape selects which envelope an identity's payload arrives in.
type Shape int

const (
	GroupShape Shape = iota
	TeacherShape
)

// ClassifyIdentity picks the payload shape for identity.
func ClassifyIdentity(identity string) Shape {
	if model.KindOf(identity) == model.IdentityGroup {
		return GroupShape
	}
	return TeacherShape
}

// ResultKey returns the envelope key expected for identity.
func ResultKey(identity string) string {
	if ClassifyIdentity(identity) == GroupShape {
		return GroupResultKey
	}
	return TeacherResultKey
}

// raspItem is one lesson in the envelope shape.
type raspItem struct {
	Date      string `json:"Date"`
	TimeStart string `json:"TimeStart"`
	TimeEnd   string `json:"TimeEnd"`
	Name      string `json:"Name"`
	Aud       string `json:"Aud"`
	Group     string `json:"Group"`
}

// Normalize converts an upstream payload into canonical lesson records.
//
// Two shapes are recognized:
//   - an envelope object keyed by GetRaspGroupResult or GetRaspPrepResult
//     whose RaspItem is a single object or an array;
//   - a flat array of records already in canonical shape.
//
// Anything else yields a *NormalizationError wrapping ErrUnexpectedShape.
func Normalize(raw []byte, identity string) ([]model.LessonRecord, error) {
	fail := func(format string, args ...any) error {
		return &NormalizationError{Identity: identity, Reason: fmt.Sprintf(format, args...)}
	}

	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, fail("empty or null payload")
	}

	switch body[0] {
	case '[':
		var rows []flatRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fail("flat array: %v", err)
		}
		records := make([]model.LessonRecord, 0, len(rows))
		for i, row := range rows {
			rec := row.record()
			if !complete(rec) {
				return nil, fail("flat array item %d has no date or start time", i)
			}
			records = append(records, rec)
		}
		return records, nil

	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fail("envelope: %v", err)
		}
		key := ResultKey(identity)
		result, ok := envelope[key]
		if !ok || isNull(result) {
			return nil, fail("missing %s", key)
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(result, &inner); err != nil {
			return nil, fail("%s: %v", key, err)
		}
		items, ok := inner[itemsKey]
		if !ok || isNull(items) {
			return nil, fail("missing %s.%s", key, itemsKey)
		}
		parsed, err := decodeItems(items)
		if err != nil {
			return nil, fail("%s.%s: %v", key, itemsKey, err)
		}
		records := make([]model.LessonRecord, 0, len(parsed))
		for i, it := range parsed {
			rec := it.record()
			if !complete(rec) {
				return nil, fail("%s.%s item %d has no date or start time", key, itemsKey, i)
			}
			records = append(records, rec)
		}
		return records, nil
	}

	return nil, fail("payload is neither an object nor an array")
}

// decodeItems accepts either a single item or an array of items.
func decodeItems(raw json.RawMessage) ([]raspItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single raspItem
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, err
		}
		return []raspItem{single}, nil
	}
	var items []raspItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (it raspItem) record() model.LessonRecord {
	return model.LessonRecord{
		Date:          NormalizeDate(it.Date),
		TimeStart:     strings.TrimSpace(it.TimeStart),
		TimeEnd:       strings.TrimSpace(it.TimeEnd),
		RawName:       strings.TrimSpace(it.Name),
		Room:          strings.TrimSpace(it.Aud),
		GroupNameHint: strings.TrimSpace(it.Group),
	}
}

// flatRow is one record of the flat array shape. Besides the canonical field
// names it accepts the provider's short row names (xdt, nf, kf, subject,
// teacher, number).
type flatRow struct {
	Date          string `json:"date"`
	TimeStart     string `json:"timeStart"`
	TimeEnd       string `json:"timeEnd"`
	RawName       string `json:"rawName"`
	Room          string `json:"room"`
	GroupNameHint string `json:"groupNameHint"`

	Xdt     string `json:"xdt"`
	Nf      string `json:"nf"`
	Kf      string `json:"kf"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Number  string `json:"number"`
}

func (r flatRow) record() model.LessonRecord {
	name := strings.TrimSpace(r.RawName)
	if name == "" {
		name = strings.TrimSpace(r.Subject)
		if teacher := strings.TrimSpace(r.Teacher); teacher != "" {
			name += LineBreak + teacher
		}
	}
	return model.LessonRecord{
		Date:          NormalizeDate(firstNonEmpty(r.Date, r.Xdt)),
		TimeStart:     firstNonEmpty(r.TimeStart, r.Nf),
		TimeEnd:       firstNonEmpty(r.TimeEnd, r.Kf),
		RawName:       name,
		Room:          firstNonEmpty(r.Room, r.Number),
		GroupNameHint: strings.TrimSpace(r.GroupNameHint),
	}
}

// complete reports whether rec carries the fields every lesson has.
func complete(rec model.LessonRecord) bool {
	return rec.Date != "" && rec.TimeStart != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var inputDateLayouts = []string{
	model.DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeDate rewrites the known upstream date layouts as dd.mm.yyyy.
// Unknown layouts are kept verbatim so the projector can flag them.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(model.DateLayout)
		}
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
