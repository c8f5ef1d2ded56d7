// Package view turns the authoritative lesson list into what a screen shows.
// Everything here is pure: no I/O, no shared state, same input same output.
package view

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"timetable-backend/internal/model"
	"timetable-backend/internal/parse"
)

// InvalidDate is returned by FormatHumanDate for unparsable input.
const InvalidDate = "Invalid Date"

var (
	weekdays = [...]string{"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота"}
	months   = [...]string{"января", "февраля", "марта", "апреля", "мая", "июня", "июля", "августа", "сентября", "октября", "ноября", "декабря"}
)

// Lesson is a record with every derived field resolved.
type Lesson struct {
	Date      string           `json:"date"`
	TimeStart string           `json:"timeStart"`
	TimeEnd   string           `json:"timeEnd"`
	Subject   string           `json:"subject"`
	Kind      parse.LessonKind `json:"kind"`
	KindLabel string           `json:"kindLabel,omitempty"`
	Teacher   string           `json:"teacher"`
	Campus    string           `json:"campus,omitempty"`
	Room      string           `json:"room,omitempty"`
	Remote    bool             `json:"remote"`
	RawName   string           `json:"rawName"`
}

// Day is one date heading with its lessons in input order.
type Day struct {
	Date    string   `json:"date"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

// Options controls Project.
type Options struct {
	// RecurringSubject is shown at most once per date. Empty disables dedup.
	RecurringSubject string
	// Filter keeps only dates that have a lesson whose name contains it.
	Filter string
}

// Project filters, deduplicates, groups and orders records for display.
func Project(records []model.LessonRecord, opts Options) []Day {
	selected := FilterBySubjectDates(records, opts.Filter)
	if opts.RecurringSubject != "" {
		selected = DedupeRecurringSubject(selected, opts.RecurringSubject)
	}

	groups := GroupByDate(selected)
	days := make([]Day, 0, len(groups))
	for _, date := range SortedDates(groups) {
		lessons := make([]Lesson, 0, len(groups[date]))
		for _, r := range groups[date] {
			lessons = append(lessons, Resolve(r))
		}
		days = append(days, Day{Date: date, Title: FormatHumanDate(date), Lessons: lessons})
	}
	return days
}

// Resolve derives the display fields of one record.
func Resolve(r model.LessonRecord) Lesson {
	name := parse.ParseName(r.RawName, r.GroupNameHint)
	room := parse.ParseRoom(r.Room)
	return Lesson{
		Date:      r.Date,
		TimeStart: r.TimeStart,
		TimeEnd:   r.TimeEnd,
		Subject:   name.Subject,
		Kind:      name.Kind,
		KindLabel: name.KindLabel,
		Teacher:   name.Teacher,
		Campus:    room.Campus,
		Room:      room.Number,
		Remote:    room.Remote,
		RawName:   r.RawName,
	}
}

// GroupByDate buckets records by date, keeping input order inside a bucket.
// The map carries no date order; use SortedDates.
func GroupByDate(records []model.LessonRecord) map[string][]model.LessonRecord {
	groups := make(map[string][]model.LessonRecord)
	for _, r := range records {
		groups[r.Date] = append(groups[r.Date], r)
	}
	return groups
}

// SortedDates returns the keys of groups in ascending chronological order.
// Unparsable dates go last, in lexical order.
func SortedDates(groups map[string][]model.LessonRecord) []string {
	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		ti, erri := model.ParseDate(dates[i], time.UTC)
		tj, errj := model.ParseDate(dates[j], time.UTC)
		switch {
		case erri == nil && errj == nil:
			if ti.Equal(tj) {
				return dates[i] < dates[j]
			}
			return ti.Before(tj)
		case erri == nil:
			return true
		case errj == nil:
			return false
		default:
			return dates[i] < dates[j]
		}
	})
	return dates
}

// FormatHumanDate renders dd.mm.yyyy as "Понедельник, 1 сентября".
func FormatHumanDate(date string) string {
	t, err := model.ParseDate(strings.TrimSpace(date), time.UTC)
	if err != nil {
		return InvalidDate
	}
	return weekdays[t.Weekday()] + ", " + strconv.Itoa(t.Day()) + " " + months[t.Month()-1]
}

// DedupeRecurringSubject keeps only the first record per date whose subject
// is subject. Other records are kept untouched and in order.
func DedupeRecurringSubject(records []model.LessonRecord, subject string) []model.LessonRecord {
	want := strings.ToLower(strings.TrimSpace(subject))
	seen := make(map[string]bool)
	out := make([]model.LessonRecord, 0, len(records))
	for _, r := range records {
		if strings.ToLower(parse.ParseName(r.RawName, r.GroupNameHint).Subject) == want {
			if seen[r.Date] {
				continue
			}
			seen[r.Date] = true
		}
		out = append(out, r)
	}
	return out
}

// FilterBySubjectDates selects every date holding at least one record whose
// name contains text, and returns all records of those dates. Matching is
// case-insensitive; blank text returns a copy of records.
func FilterBySubjectDates(records []model.LessonRecord, text string) []model.LessonRecord {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return model.CloneRecords(records)
	}

	matched := make(map[string]bool)
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.RawName), needle) {
			matched[r.Date] = true
		}
	}
	out := make([]model.LessonRecord, 0, len(records))
	for _, r := range records {
		if matched[r.Date] {
			out = append(out, r)
		}
	}
	return out
}

// NearestDate picks the candidate closest to target by absolute day
// difference. Ties go to the earlier candidate. ok is false when no
// candidate parses.
func NearestDate(target string, candidates []string) (string, bool) {
	t, err := model.ParseDate(target, time.UTC)
	if err != nil {
		return "", false
	}
	var (
		best     string
		bestTime time.Time
		bestDiff time.Duration
		found    bool
	)
	for _, c := range candidates {
		ct, err := model.ParseDate(c, time.UTC)
		if err != nil {
			continue
		}
		diff := ct.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if !found || diff < bestDiff || (diff == bestDiff && ct.Before(bestTime)) {
			best, bestTime, bestDiff, found = c, ct, diff, true
		}
	}
	return best, found
}
