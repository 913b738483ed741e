package backup

import (
	"fmt"
	"testing"
	"time"
)

func TestFilename_MatchesTierPatterns(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 5, 13, 4, 2, 0, time.UTC)

	cases := []struct {
		kind Kind
		want string
	}{
		{Manual, "backup_manual_20260305_130402.db"},
		{Daily, "backup_daily_20260305_130402.db"},
		{Monthly, "backup_monthly_2026_03.db"},
		{Yearly, "backup_yearly_2026.db"},
	}

	for _, c := range cases {
		if got := filename(c.kind, at); got != c.want {
			t.Errorf("filename(%v, %v) = %q, want %q", c.kind, at, got, c.want)
		}
	}
}

func TestFilename_WeeklyUsesISOWeekNumber(t *testing.T) {
	t.Parallel()

	_, want := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC).ISOWeek()

	got := filename(Weekly, time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC))

	expected := fmt.Sprintf("backup_weekly_2026_W%02d.db", want)
	if got != expected {
		t.Errorf("filename(Weekly, ...) = %q, want %q", got, expected)
	}
}

func TestKindOf_RecognisesGeneratedNames(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{Manual, Daily, Weekly, Monthly, Yearly} {
		name := filename(k, time.Now())

		got, ok := kindOf(name)
		if !ok || got != k {
			t.Errorf("kindOf(%q) = (%v, %v), want (%v, true)", name, got, ok, k)
		}
	}
}

func TestKindOf_RejectsUnrelatedNames(t *testing.T) {
	t.Parallel()

	if _, ok := kindOf("README.md"); ok {
		t.Errorf("kindOf(README.md) = ok, want not ok")
	}
}
