package model

// LessonRecord is one scheduled session in its canonical, stored shape.
// Subject, lesson kind, teacher and campus are derived from RawName and Room
// on demand and never persisted.
type LessonRecord struct {
	Date          string `json:"date"` // dd.mm.yyyy
	TimeStart     string `json:"timeStart"`
	TimeEnd       string `json:"timeEnd"`
	RawName       string `json:"rawName"`
	Room          string `json:"room"`
	GroupNameHint string `json:"groupNameHint,omitempty"`
}

// EqualRecords compares two record lists by value, order included.
func EqualRecords(a, b []LessonRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CloneRecords returns an independent copy of records. A nil input stays nil.
func CloneRecords(records []LessonRecord) []LessonRecord {
	if records == nil {
		return nil
	}
	dup := make([]LessonRecord, len(records))
	copy(dup, records)
	return dup
}
