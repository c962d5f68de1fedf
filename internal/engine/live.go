package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/rs/zerolog"
)

// LiveItem is one paced item in a live/replay run. Seconds is the governing
// duration: the question's declared limit when it has one, otherwise the
// medium's natural duration, otherwise the authoring default.
type LiveItem struct {
	QuestionID uuid.UUID
	MediaRef   string
	Seconds    int
}

// LiveEvent is pushed to the driver's consumer on every progression.
type LiveEvent struct {
	Index    int  `json:"index"`
	Finished bool `json:"finished"`
}

// LiveDriver paces a registration-free viewing run over an exam's questions.
// It replaces the question timer as the pacing source: items advance when
// their governing duration elapses or the medium reports its end. Viewing is
// read-only; no answers are collected and no result is produced.
//
// Each advance bumps an internal sequence number; a stale media-end event or
// a pending auto-advance for a skipped item is discarded by sequence check,
// so manual skips can never double-advance.
type LiveDriver struct {
	mu sync.Mutex

	items []LiveItem
	log   zerolog.Logger

	idx       int
	seq       int
	remaining int
	finished  bool

	events chan LiveEvent
	done   chan struct{}
}

// NewLiveDriver builds a driver over the exam's question order.
func NewLiveDriver(exam *model.Exam, log zerolog.Logger) *LiveDriver {
	items := make([]LiveItem, 0, len(exam.Questions))
	for i := range exam.Questions {
		q := &exam.Questions[i]
		items = append(items, LiveItem{
			QuestionID: q.ID,
			MediaRef:   q.MediaRef,
			Seconds:    governingSeconds(q),
		})
	}

	d := &LiveDriver{
		items:  items,
		log:    log.With().Str("component", "live_driver").Str("exam_id", exam.ID.String()).Logger(),
		events: make(chan LiveEvent, 16),
		done:   make(chan struct{}),
	}
	if len(items) > 0 {
		d.remaining = items[0].Seconds
	} else {
		d.finishLocked()
	}
	return d
}

// governingSeconds picks the pacing duration for one question: declared
// limit first, then media duration, then the authoring default.
func governingSeconds(q *model.Question) int {
	if q.TimeLimitSeconds != nil && *q.TimeLimitSeconds > 0 {
		return *q.TimeLimitSeconds
	}
	if q.MediaDurationSeconds > 0 {
		return q.MediaDurationSeconds
	}
	return model.DefaultQuestionSeconds
}

// Events yields one LiveEvent per progression, plus a final Finished event.
func (d *LiveDriver) Events() <-chan LiveEvent { return d.events }

// Done is closed once the run finishes or the driver is closed.
func (d *LiveDriver) Done() <-chan struct{} { return d.done }

// Current returns the index of the item currently playing.
func (d *LiveDriver) Current() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idx
}

// Finished reports whether the run has reached its end.
func (d *LiveDriver) Finished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finished
}

// Items returns the paced items in play order.
func (d *LiveDriver) Items() []LiveItem {
	return d.items
}

// Tick counts one second off the current item's governing duration and
// advances on elapse, exactly like automatic question-timer expiry.
func (d *LiveDriver) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finished || d.remaining <= 0 {
		return
	}
	d.remaining--
	if d.remaining == 0 {
		d.advanceLocked()
	}
}

// MediaEnded reports that the medium for item seq finished playing. Events
// referring to an item no longer current are stale and ignored; this is what
// prevents a skip racing a media-end into a double advance.
func (d *LiveDriver) MediaEnded(seq int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finished || seq != d.seq {
		return
	}
	d.advanceLocked()
}

// Skip is the manual advance. It cancels the pending auto-advance for the
// current item by advancing immediately, which invalidates the item's
// sequence number.
func (d *LiveDriver) Skip() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finished {
		return
	}
	d.advanceLocked()
}

// Seq returns the sequence number identifying the current item; pass it back
// to MediaEnded so stale notifications can be discarded.
func (d *LiveDriver) Seq() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// Close stops the run without emitting further events.
func (d *LiveDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finished {
		return
	}
	d.finished = true
	d.remaining = 0
	d.closeDoneLocked()
}

// ─── internal ───────────────────────────────────────────────────────

func (d *LiveDriver) advanceLocked() {
	d.seq++
	if d.idx >= len(d.items)-1 {
		d.finishLocked()
		return
	}
	d.idx++
	d.remaining = d.items[d.idx].Seconds
	d.emitLocked(LiveEvent{Index: d.idx})
}

// finishLocked ends the run and forwards the viewer to the summary/landing
// destination. No result is computed here: nothing was answered.
func (d *LiveDriver) finishLocked() {
	if d.finished {
		return
	}
	d.finished = true
	d.remaining = 0
	d.emitLocked(LiveEvent{Index: d.idx, Finished: true})
	d.closeDoneLocked()
	d.log.Info().Int("items", len(d.items)).Msg("Live run finished")
}

func (d *LiveDriver) emitLocked(ev LiveEvent) {
	select {
	case d.events <- ev:
	default:
		// Consumer fell behind; drop rather than block the tick path.
	}
}

func (d *LiveDriver) closeDoneLocked() {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
}
