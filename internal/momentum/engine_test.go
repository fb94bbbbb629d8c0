package momentum

import (
	"context"
	"testing"
	"time"

	"github.com/Ntexler/trendvest/internal/model"
	"github.com/Ntexler/trendvest/internal/store"
)

// testNow is a fixed instant mid-day so "today" and the 7 prior days are
// unambiguous.
var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore, int64) {
	t.Helper()

	st := store.NewMemoryStore()
	id, err := st.UpsertTopic(context.Background(), &model.Topic{
		Slug:   "ai",
		Name:   "Artificial Intelligence",
		Sector: "Technology",
		Active: true,
	})
	if err != nil {
		t.Fatalf("seed topic: %v", err)
	}

	e := NewEngine(st)
	e.now = func() time.Time { return testNow }
	return e, st, id
}

// addMentions records a mention count collected at testNow minus daysAgo
// (same clock time, earlier calendar day).
func addMentions(t *testing.T, st *store.MemoryStore, topicID int64, daysAgo int, count int64) {
	t.Helper()

	at := testNow.AddDate(0, 0, -daysAgo)
	err := st.InsertMentionRecords(context.Background(), []model.MentionRecord{{
		TopicID:     topicID,
		Source:      "reddit",
		Count:       count,
		CollectedAt: at,
		PeriodStart: at.Add(-24 * time.Hour),
		PeriodEnd:   at,
	}})
	if err != nil {
		t.Fatalf("insert mentions: %v", err)
	}
}

func runOne(t *testing.T, e *Engine) model.MomentumScore {
	t.Helper()

	scores, err := e.CalculateAll(context.Background())
	if err != nil {
		t.Fatalf("CalculateAll: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(scores))
	}
	return scores[0]
}

func TestCalculateAll_RisingAboveBaseline(t *testing.T) {
	e, st, id := newTestEngine(t)

	// Baseline: 10/day for the prior 7 days. Today: 20.
	for daysAgo := 1; daysAgo <= 7; daysAgo++ {
		addMentions(t, st, id, daysAgo, 10)
	}
	addMentions(t, st, id, 0, 20)

	sc := runOne(t, e)
	if sc.Score != 200 {
		t.Errorf("score = %v, want 200", sc.Score)
	}
	if sc.MentionsToday != 20 {
		t.Errorf("mentions today = %d, want 20", sc.MentionsToday)
	}
	if sc.AvgMentions7d != 10 {
		t.Errorf("avg = %v, want 10", sc.AvgMentions7d)
	}
	if sc.Direction != model.DirectionRising {
		t.Errorf("direction = %q, want rising", sc.Direction)
	}
}

func TestCalculateAll_ColdStart(t *testing.T) {
	e, st, id := newTestEngine(t)

	// Mentions today, zero history: fixed strong score, not a crash.
	addMentions(t, st, id, 0, 5)

	sc := runOne(t, e)
	if sc.Score != 200 {
		t.Errorf("cold-start score = %v, want 200", sc.Score)
	}
	if sc.Direction != model.DirectionRising {
		t.Errorf("direction = %q, want rising", sc.Direction)
	}
	if sc.AvgMentions7d != 0 {
		t.Errorf("avg = %v, want 0", sc.AvgMentions7d)
	}
}

func TestCalculateAll_NoDataAtAll(t *testing.T) {
	e, _, _ := newTestEngine(t)

	sc := runOne(t, e)
	if sc.Score != 0 {
		t.Errorf("score = %v, want 0", sc.Score)
	}
	if sc.Direction != model.DirectionFalling {
		t.Errorf("direction = %q, want falling", sc.Direction)
	}
}

func TestCalculateAll_DirectionBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		today int64
		want  string
		score float64
	}{
		// Baseline is 10/day in every case.
		{"exactly 150 is stable", 15, model.DirectionStable, 150},
		{"just above 150 is rising", 16, model.DirectionRising, 160},
		{"exactly 80 is falling", 8, model.DirectionFalling, 80},
		{"just above 80 is stable", 9, model.DirectionStable, 90},
		{"equal to baseline is stable", 10, model.DirectionStable, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, st, id := newTestEngine(t)
			for daysAgo := 1; daysAgo <= 7; daysAgo++ {
				addMentions(t, st, id, daysAgo, 10)
			}
			addMentions(t, st, id, 0, tc.today)

			sc := runOne(t, e)
			if sc.Score != tc.score {
				t.Errorf("score = %v, want %v", sc.Score, tc.score)
			}
			if sc.Direction != tc.want {
				t.Errorf("direction = %q, want %q", sc.Direction, tc.want)
			}
		})
	}
}

func TestCalculateAll_AverageCountsOnlyDaysWithRecords(t *testing.T) {
	e, st, id := newTestEngine(t)

	// Records on only 2 of the 7 prior days: the mean divides by 2, not 7.
	addMentions(t, st, id, 2, 30)
	addMentions(t, st, id, 5, 10)
	addMentions(t, st, id, 0, 20)

	sc := runOne(t, e)
	if sc.AvgMentions7d != 20 {
		t.Errorf("avg = %v, want 20 (mean over days with records)", sc.AvgMentions7d)
	}
	if sc.Score != 100 {
		t.Errorf("score = %v, want 100", sc.Score)
	}
}

func TestCalculateAll_TodayIsCalendarDayNotRollingWindow(t *testing.T) {
	e, st, id := newTestEngine(t)

	// Collected late yesterday, within the last 24h but before today's
	// midnight. Counts toward the baseline, not today.
	late := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	err := st.InsertMentionRecords(context.Background(), []model.MentionRecord{{
		TopicID:     id,
		Source:      "reddit",
		Count:       40,
		CollectedAt: late,
		PeriodStart: late.Add(-24 * time.Hour),
		PeriodEnd:   late,
	}})
	if err != nil {
		t.Fatalf("insert mentions: %v", err)
	}
	addMentions(t, st, id, 0, 10)

	sc := runOne(t, e)
	if sc.MentionsToday != 10 {
		t.Errorf("mentions today = %d, want 10", sc.MentionsToday)
	}
	if sc.AvgMentions7d != 40 {
		t.Errorf("avg = %v, want 40", sc.AvgMentions7d)
	}
}

func TestCalculateAll_RoundsToOneDecimal(t *testing.T) {
	e, st, id := newTestEngine(t)

	// Baseline 3/day over 3 days with uneven counts: avg = 10/3.
	addMentions(t, st, id, 1, 3)
	addMentions(t, st, id, 2, 3)
	addMentions(t, st, id, 3, 4)
	addMentions(t, st, id, 0, 5)

	sc := runOne(t, e)
	if sc.AvgMentions7d != 3.3 {
		t.Errorf("avg = %v, want 3.3", sc.AvgMentions7d)
	}
	// 5 / (10/3) * 100 = 150.0 exactly.
	if sc.Score != 150 {
		t.Errorf("score = %v, want 150", sc.Score)
	}
	if sc.Direction != model.DirectionStable {
		t.Errorf("direction = %q, want stable", sc.Direction)
	}
}

func TestCalculateAll_Idempotent(t *testing.T) {
	e, st, id := newTestEngine(t)

	for daysAgo := 1; daysAgo <= 7; daysAgo++ {
		addMentions(t, st, id, daysAgo, 10)
	}
	addMentions(t, st, id, 0, 12)

	first := runOne(t, e)
	second := runOne(t, e)

	if first != second {
		t.Errorf("repeated run over unchanged history differs:\n first: %+v\nsecond: %+v", first, second)
	}

	stored, err := st.ListMomentumScores(context.Background())
	if err != nil {
		t.Fatalf("ListMomentumScores: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("expected a single stored row per topic, got %d", len(stored))
	}
}

func TestCalculateAll_SkipsInactiveTopics(t *testing.T) {
	e, st, _ := newTestEngine(t)

	if _, err := st.UpsertTopic(context.Background(), &model.Topic{
		Slug:   "dormant",
		Name:   "Dormant",
		Active: false,
	}); err != nil {
		t.Fatalf("seed topic: %v", err)
	}

	scores, err := e.CalculateAll(context.Background())
	if err != nil {
		t.Fatalf("CalculateAll: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("inactive topic should not be scored, got %d scores", len(scores))
	}
}
