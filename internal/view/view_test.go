package view

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetable-backend/internal/model"
	"timetable-backend/internal/parse"
)

const pe = "Физическая культура и спорт"

func rec(date, name string) model.LessonRecord {
	return model.LessonRecord{Date: date, TimeStart: "09:00", TimeEnd: "10:30", RawName: name, Room: "П8-204"}
}

func flatten(groups map[string][]model.LessonRecord) []model.LessonRecord {
	var out []model.LessonRecord
	for _, rs := range groups {
		out = append(out, rs...)
	}
	return out
}

func TestGroupByDate_RoundTrip(t *testing.T) {
	testCases := [][]model.LessonRecord{
		nil,
		{rec("01.09.2025", "A")},
		{rec("02.09.2025", "A"), rec("01.09.2025", "B"), rec("02.09.2025", "C"), rec("02.09.2025", "A")},
	}

	for i, records := range testCases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			groups := GroupByDate(records)
			assert.ElementsMatch(t, records, flatten(groups))
			if len(records) == 0 {
				assert.Empty(t, groups)
			}
		})
	}
}

func TestGroupByDate_KeepsOrderInsideDate(t *testing.T) {
	groups := GroupByDate([]model.LessonRecord{rec("01.09.2025", "A"), rec("02.09.2025", "X"), rec("01.09.2025", "B")})
	assert.Equal(t, []model.LessonRecord{rec("01.09.2025", "A"), rec("01.09.2025", "B")}, groups["01.09.2025"])
}

func TestSortedDates(t *testing.T) {
	groups := GroupByDate([]model.LessonRecord{
		rec("01.10.2025", "A"), rec("garbage", "B"), rec("30.09.2025", "C"), rec("02.01.2026", "D"),
	})
	assert.Equal(t, []string{"30.09.2025", "01.10.2025", "02.01.2026", "garbage"}, SortedDates(groups))
}

func TestFormatHumanDate(t *testing.T) {
	assert.Equal(t, "Понедельник, 1 сентября", FormatHumanDate("01.09.2025"))
	assert.Equal(t, "Среда, 31 декабря", FormatHumanDate("31.12.2025"))
	assert.Equal(t, InvalidDate, FormatHumanDate("2025-09-01"))
	assert.Equal(t, InvalidDate, FormatHumanDate(""))
	assert.Equal(t, InvalidDate, FormatHumanDate("32.13.2025"))
}

func TestDedupeRecurringSubject(t *testing.T) {
	records := []model.LessonRecord{
		rec("01.09.2025", pe+" (Прак)<br>Петров"),
		rec("01.09.2025", "Математика (Лек)<br>Иванов"),
		rec("01.09.2025", pe+" (Прак)<br>Сидоров"),
		rec("02.09.2025", pe+" (Прак)<br>Петров"),
		rec("01.09.2025", pe),
		rec("02.09.2025", "Математика (Лек)<br>Иванов"),
		rec("02.09.2025", "Математика (Лек)<br>Иванов"),
	}

	out := DedupeRecurringSubject(records, pe)
	assert.Equal(t, []model.LessonRecord{records[0], records[1], records[3], records[5], records[6]}, out)

	countPE := 0
	for _, r := range records {
		if parse.ParseName(r.RawName, "").Subject == pe {
			countPE++
		}
	}
	assert.Equal(t, len(records)-(countPE-2), len(out), "removes count-1 per date and nothing else")
	assert.Equal(t, out, DedupeRecurringSubject(out, pe), "idempotent")
}

func TestFilterBySubjectDates(t *testing.T) {
	records := []model.LessonRecord{
		rec("01.09.2025", "Математика (Лек)"),
		rec("01.09.2025", "История (Прак)"),
		rec("02.09.2025", "История (Лек)"),
		rec("03.09.2025", "Право (Лек)"),
		rec("03.09.2025", "математика (Прак)"),
	}

	out := FilterBySubjectDates(records, "МАТЕМ")
	assert.Equal(t, []model.LessonRecord{records[0], records[1], records[3], records[4]}, out)

	assert.Equal(t, records, FilterBySubjectDates(records, "  "))
	assert.Empty(t, FilterBySubjectDates(records, "Химия"))
}

func TestProject(t *testing.T) {
	records := []model.LessonRecord{
		rec("02.09.2025", "Право (Лек)<br>Орлов О.О."),
		rec("01.09.2025", pe+" (Прак)"),
		rec("01.09.2025", pe+" (Прак)"),
		{Date: "01.09.2025", TimeStart: "12:00", TimeEnd: "13:30", RawName: "Сети (Лаб)<br>Сидоров", Room: "СДО", GroupNameHint: "ИТ-101 (2)"},
	}

	days := Project(records, Options{RecurringSubject: pe})
	require.Len(t, days, 2)

	assert.Equal(t, "01.09.2025", days[0].Date)
	assert.Equal(t, "Понедельник, 1 сентября", days[0].Title)
	require.Len(t, days[0].Lessons, 2)
	lab := days[0].Lessons[1]
	assert.Equal(t, "Сети", lab.Subject)
	assert.Equal(t, "Lab, subgroup 2", lab.KindLabel)
	assert.True(t, lab.Remote)
	assert.Empty(t, lab.Room)

	law := days[1].Lessons[0]
	assert.Equal(t, parse.CampusPushkina8, law.Campus)
	assert.Equal(t, "204", law.Room)
	assert.Equal(t, "Орлов О.О.", law.Teacher)

	filtered := Project(records, Options{Filter: "право"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "02.09.2025", filtered[0].Date)

	assert.Empty(t, Project(nil, Options{}))
}

func TestNearestDate(t *testing.T) {
	candidates := []string{"01.09.2025", "05.09.2025", "bad", "09.09.2025"}

	d, ok := NearestDate("05.09.2025", candidates)
	assert.True(t, ok)
	assert.Equal(t, "05.09.2025", d)

	d, ok = NearestDate("07.09.2025", candidates)
	assert.True(t, ok)
	assert.Equal(t, "05.09.2025", d, "ties go to the earlier date")

	d, _ = NearestDate("20.08.2025", candidates)
	assert.Equal(t, "01.09.2025", d)

	_, ok = NearestDate("nope", candidates)
	assert.False(t, ok)
	_, ok = NearestDate("01.09.2025", nil)
	assert.False(t, ok)
}
