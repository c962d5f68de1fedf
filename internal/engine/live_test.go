package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/rs/zerolog"
)

func liveExam(seconds ...int) *model.Exam {
	exam := &model.Exam{ID: uuid.New(), Title: "Live"}
	for _, s := range seconds {
		limit := s
		exam.Questions = append(exam.Questions, model.Question{
			ID:               uuid.New(),
			Type:             model.QuestionTypeSingle,
			Options:          []string{"A", "B"},
			CorrectIndices:   []int{0},
			TimeLimitSeconds: &limit,
		})
	}
	return exam
}

func drainEvents(d *LiveDriver) []LiveEvent {
	var evs []LiveEvent
	for {
		select {
		case ev := <-d.Events():
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestLiveGoverningSeconds(t *testing.T) {
	limit := 20
	zero := 0
	tests := []struct {
		name string
		q    model.Question
		want int
	}{
		{"declared limit governs", model.Question{TimeLimitSeconds: &limit, MediaDurationSeconds: 90}, 20},
		{"media duration when no limit", model.Question{MediaDurationSeconds: 90}, 90},
		{"zero limit falls through to media", model.Question{TimeLimitSeconds: &zero, MediaDurationSeconds: 45}, 45},
		{"default when nothing declared", model.Question{}, model.DefaultQuestionSeconds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := governingSeconds(&tt.q); got != tt.want {
				t.Errorf("governingSeconds = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLiveDurationElapseAdvances(t *testing.T) {
	d := NewLiveDriver(liveExam(2, 3), zerolog.Nop())

	d.Tick()
	if d.Current() != 0 {
		t.Fatal("advanced early")
	}
	d.Tick()
	if d.Current() != 1 {
		t.Fatalf("index = %d, want 1", d.Current())
	}

	evs := drainEvents(d)
	if len(evs) != 1 || evs[0].Index != 1 || evs[0].Finished {
		t.Errorf("events = %+v, want one advance to index 1", evs)
	}
}

func TestLiveLastItemFinishes(t *testing.T) {
	d := NewLiveDriver(liveExam(1), zerolog.Nop())

	d.Tick()
	if !d.Finished() {
		t.Fatal("driver should be finished")
	}
	select {
	case <-d.Done():
	default:
		t.Error("Done not closed on finish")
	}
	evs := drainEvents(d)
	if len(evs) != 1 || !evs[0].Finished {
		t.Errorf("events = %+v, want one finish event", evs)
	}

	// Further ticks and skips are no-ops after finish.
	d.Tick()
	d.Skip()
	if evs := drainEvents(d); len(evs) != 0 {
		t.Errorf("post-finish events = %+v, want none", evs)
	}
}

func TestLiveSkipCancelsPendingAutoAdvance(t *testing.T) {
	d := NewLiveDriver(liveExam(10, 10, 10), zerolog.Nop())

	seq := d.Seq()
	d.Skip()
	if d.Current() != 1 {
		t.Fatalf("index = %d, want 1 after skip", d.Current())
	}

	// A media-end for the skipped item arrives late: stale, must not
	// advance a second time.
	d.MediaEnded(seq)
	if d.Current() != 1 {
		t.Errorf("index = %d, want 1 (stale media-end double-advanced)", d.Current())
	}
}

func TestLiveMediaEndedAdvancesCurrentItem(t *testing.T) {
	d := NewLiveDriver(liveExam(100, 100), zerolog.Nop())

	d.MediaEnded(d.Seq())
	if d.Current() != 1 {
		t.Fatalf("index = %d, want 1", d.Current())
	}
	// Replayed notification for the same, now stale, sequence is ignored.
	d.MediaEnded(0)
	if d.Current() != 1 || d.Finished() {
		t.Error("stale replayed media-end must be ignored")
	}
}

func TestLiveSkipResetsNextItemDuration(t *testing.T) {
	d := NewLiveDriver(liveExam(10, 2), zerolog.Nop())

	d.Skip()
	drainEvents(d)

	// Next item runs on its own duration, not leftover time.
	d.Tick()
	d.Tick()
	if !d.Finished() {
		t.Error("second item should finish after its own 2s")
	}
}

func TestLiveCloseStopsRun(t *testing.T) {
	d := NewLiveDriver(liveExam(5, 5), zerolog.Nop())

	d.Close()
	select {
	case <-d.Done():
	default:
		t.Fatal("Done not closed")
	}
	d.Tick()
	if evs := drainEvents(d); len(evs) != 0 {
		t.Errorf("events after Close = %+v, want none", evs)
	}
}

func TestLiveEmptyExamFinishesImmediately(t *testing.T) {
	d := NewLiveDriver(liveExam(), zerolog.Nop())
	if !d.Finished() {
		t.Error("empty run should finish immediately")
	}
}
