package parse

import (
	"regexp"
	"strings"
)

// LineBreak separates the subject part of a raw lesson name from the teacher.
const LineBreak = "<br>"

// NoTeacher is shown when the upstream did not name a teacher.
const NoTeacher = "teacher not specified"

var (
	annotationRe = regexp.MustCompile(`\(([^()]*)\)`)
	subgroupRe   = regexp.MustCompile(`(?:\((\d+)\)|/\s*(\d+))\s*$`)
	spacesRe     = regexp.MustCompile(`\s+`)
)

// LessonKind is the canonical lesson type.
type LessonKind string

const (
	KindLecture  LessonKind = "lecture"
	KindPractice LessonKind = "practice"
	KindLab      LessonKind = "lab"
	KindOther    LessonKind = "other"
)

// ParsedName holds the structured data derived from a raw lesson name.
type ParsedName struct {
	Subject   string
	Kind      LessonKind
	KindLabel string
	Subgroup  string
	Teacher   string
}

// kindPrefixes maps lowercase annotation prefixes to a canonical kind.
// Order matters: the first matching prefix wins.
var kindPrefixes = []struct {
	prefix string
	kind   LessonKind
}{
	{"лек", KindLecture},
	{"lec", KindLecture},
	{"прак", KindPractice},
	{"practical", KindPractice},
	{"practice", KindPractice},
	{"сем", KindPractice},
	{"seminar", KindPractice},
	{"лаб", KindLab},
	{"lab", KindLab},
}

// ParseName splits a raw lesson name into subject, lesson kind and teacher.
// groupHint is used to number laboratory subgroups.
func ParseName(raw string, groupHint string) ParsedName {
	head, teacherPart, _ := strings.Cut(raw, LineBreak)

	subject := head
	if i := strings.Index(head, "("); i >= 0 {
		subject = head[:i]
	}
	subject = collapse(subject)

	parsed := ParsedName{
		Subject: subject,
		Kind:    KindOther,
		Teacher: parseTeacher(teacherPart),
	}

	m := annotationRe.FindStringSubmatch(head)
	if m == nil {
		return parsed
	}
	annotation := collapse(m[1])
	parsed.Kind = classifyKind(annotation)

	switch parsed.Kind {
	case KindLecture:
		parsed.KindLabel = "Lecture"
	case KindPractice:
		parsed.KindLabel = "Practice"
	case KindLab:
		parsed.KindLabel = "Lab"
		if n := subgroupOf(groupHint); n != "" {
			parsed.Subgroup = n
			parsed.KindLabel = "Lab, subgroup " + n
		}
	default:
		parsed.KindLabel = annotation
	}
	return parsed
}

func classifyKind(annotation string) LessonKind {
	// "Лек, 2 ч." style annotations carry extra details after a comma.
	first, _, _ := strings.Cut(annotation, ",")
	lower := strings.ToLower(strings.TrimSpace(first))
	for _, kp := range kindPrefixes {
		if strings.HasPrefix(lower, kp.prefix) {
			return kp.kind
		}
	}
	return KindOther
}

func subgroupOf(groupHint string) string {
	m := subgroupRe.FindStringSubmatch(strings.TrimSpace(groupHint))
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func parseTeacher(s string) string {
	s = collapse(strings.ReplaceAll(s, LineBreak, " "))
	// Single characters like "-" or "." are placeholders, not names.
	if len([]rune(s)) <= 1 {
		return NoTeacher
	}
	return s
}

func collapse(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}
