package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/remote"
	"github.com/classward/attempt-engine/internal/utils"
)

// SnapshotStore persists attempt views so a reconnecting client can
// resume. Saves are best-effort and never block a transition.
type SnapshotStore interface {
	Save(ctx context.Context, view models.AttemptView) error
	Delete(ctx context.Context, attemptID string) error
}

// CompletedAttempt is handed to the completion hook once the collaborator
// acknowledges the final submission. The live attempt is discarded after.
type CompletedAttempt struct {
	View          models.AttemptView
	Answers       map[string][]models.Answer
	SectionScores map[string]*float64
	Result        remote.FinalResult
	StartedAt     time.Time
	CompletedAt   time.Time
}

// Deps are the injected capabilities of a controller. Coordinator is
// required; the rest are optional.
type Deps struct {
	Coordinator      remote.Coordinator
	Snapshots        SnapshotStore
	Logger           utils.Logger
	Tick             time.Duration
	OnCompleted      func(CompletedAttempt)
	OnAbandoned      func(attemptID string)
	OnSectionTimeout func(attemptID, sectionID, studentID string)
}

// Controller owns one attempt's lifecycle: per-section activation,
// navigation, completion checks, timeout-triggered and user-triggered
// submission, and the exactly-once submission guarantee.
type Controller struct {
	attemptID string
	testID    string
	studentID string

	coordinator remote.Coordinator
	snapshots   SnapshotStore
	logger      utils.Logger
	tick        time.Duration
	onCompleted func(CompletedAttempt)
	onTimeout   func(attemptID, sectionID, studentID string)

	// state owned by the event loop
	test          models.TestDefinition
	status        models.AttemptStatus
	secIdx        int
	qIdx          int
	stores        map[string]*AnswerStore
	submitted     map[string]bool
	failed        map[string]bool
	sectionScores map[string]*float64
	finalResult   *remote.FinalResult
	inflight      int
	finalSent     bool
	lastErr       error
	startedAt     time.Time

	timer    *SectionTimer
	timerGen int

	// exactly-once guard for the final submission sequence; checked and
	// set before any network call regardless of which trigger fires first
	submitLatch atomic.Bool

	events chan event
	quit   chan struct{}
}

// Start requests an attempt from the collaborator and activates the first
// section. Window and no-retake refusals come back as *StartError and are
// reported, not retried.
func Start(ctx context.Context, testID, studentID string, deps Deps) (*Controller, error) {
	if deps.Logger == nil {
		deps.Logger = utils.NewDefaultLogger()
	}
	if deps.Tick <= 0 {
		deps.Tick = time.Second
	}

	result, err := deps.Coordinator.StartAttempt(ctx, testID)
	if err != nil {
		if remote.IsRejection(err) {
			var rejection *remote.RemoteRejectionError
			errors.As(err, &rejection)
			return nil, &StartError{TestID: testID, Reason: rejection.Reason, Err: err}
		}
		return nil, err
	}

	test := result.Test
	now := time.Now()
	if !test.OpensAt.IsZero() && now.Before(test.OpensAt) {
		return nil, &StartError{TestID: testID, Reason: "test is not open yet"}
	}
	if !test.ClosesAt.IsZero() && now.After(test.ClosesAt) {
		return nil, &StartError{TestID: testID, Reason: "test window has closed"}
	}

	// Sections may arrive without their question lists; fetch those up
	// front so activation never blocks on the network mid-attempt. A nil
	// list means "not included", an empty list means an empty section.
	for i := range test.Sections {
		if test.Sections[i].Questions != nil {
			continue
		}
		questions, err := deps.Coordinator.FetchSectionQuestions(ctx, testID, test.Sections[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch questions for section %s: %w", test.Sections[i].ID, err)
		}
		if questions == nil {
			questions = []models.Question{}
		}
		test.Sections[i].Questions = questions
	}

	c := &Controller{
		attemptID:     result.AttemptID,
		testID:        testID,
		studentID:     studentID,
		coordinator:   deps.Coordinator,
		snapshots:     deps.Snapshots,
		logger:        deps.Logger.With("attempt_id", result.AttemptID, "test_id", testID),
		tick:          deps.Tick,
		onCompleted:   deps.OnCompleted,
		onTimeout:     deps.OnSectionTimeout,
		test:          test,
		status:        models.AttemptNotStarted,
		stores:        make(map[string]*AnswerStore, len(test.Sections)),
		submitted:     make(map[string]bool),
		failed:        make(map[string]bool),
		sectionScores: make(map[string]*float64),
		startedAt:     now,
		events:        make(chan event, 32),
		quit:          make(chan struct{}),
	}
	for i := range test.Sections {
		c.stores[test.Sections[i].ID] = NewAnswerStore()
	}

	if len(test.Sections) == 0 {
		return nil, &StartError{TestID: testID, Reason: "test has no sections"}
	}

	c.activateSection(0)
	go c.run()

	c.logger.Info("Attempt started",
		"student_id", studentID,
		"sections", len(test.Sections))
	c.saveSnapshot()

	return c, nil
}

// ===== PUBLIC API (serialized through the event loop) =====

func (c *Controller) AttemptID() string { return c.attemptID }
func (c *Controller) TestID() string    { return c.testID }
func (c *Controller) StudentID() string { return c.studentID }

// QuestionByID finds a question anywhere in the test. The definition is
// immutable once the attempt starts, so this reads without the loop.
func (c *Controller) QuestionByID(questionID string) (models.Question, bool) {
	for i := range c.test.Sections {
		if q, ok := c.test.Sections[i].QuestionByID(questionID); ok {
			return *q, true
		}
	}
	return models.Question{}, false
}

// Answer validates and upserts a captured value for a question in the
// active section. Out-of-scope and type-mismatched answers are rejected
// with no side effects.
func (c *Controller) Answer(questionID string, input AnswerInput) error {
	reply, err := c.post(event{kind: evAnswer, questionID: questionID, input: input})
	if err != nil {
		return err
	}
	return reply.err
}

// Navigate moves the current question index. No-op at section boundaries.
func (c *Controller) Navigate(direction string) error {
	reply, err := c.post(event{kind: evNavigate, direction: direction})
	if err != nil {
		return err
	}
	return reply.err
}

// AdvanceSection submits the active section and activates the next one,
// or transitions to Submitting when no sections remain. Callable only
// when the section is complete (a timeout advances it internally).
func (c *Controller) AdvanceSection() error {
	reply, err := c.post(event{kind: evAdvance})
	if err != nil {
		return err
	}
	return reply.err
}

// SubmitTest submits every remaining section early, recording an empty
// answer for each unanswered question. The latch guarantees exactly one
// submission sequence even when racing a timeout.
func (c *Controller) SubmitTest() error {
	reply, err := c.post(event{kind: evSubmitTest})
	if err != nil {
		return err
	}
	return reply.err
}

// ReviewSection returns a read-only view of an already-submitted section.
// It never restarts a timer and never mutates answers.
func (c *Controller) ReviewSection(index int) (models.SectionView, error) {
	reply, err := c.post(event{kind: evReview, sectionIndex: index})
	if err != nil {
		return models.SectionView{}, err
	}
	return reply.section, reply.err
}

// RetrySubmission re-dispatches submissions that exhausted their retries.
// Answers were preserved, so the collaborator sees identical payloads.
func (c *Controller) RetrySubmission() error {
	reply, err := c.post(event{kind: evRetry})
	if err != nil {
		return err
	}
	return reply.err
}

// Abandon ends the attempt; in-flight work resolving afterwards is
// dropped rather than applied.
func (c *Controller) Abandon() error {
	reply, err := c.post(event{kind: evAbandon})
	if err != nil {
		return err
	}
	return reply.err
}

// State returns a consistent snapshot of the attempt.
func (c *Controller) State() (models.AttemptView, error) {
	reply, err := c.post(event{kind: evState})
	if err != nil {
		return models.AttemptView{}, err
	}
	return reply.view, nil
}

// Close stops the event loop. The registry calls this once the attempt is
// archived or abandoned.
func (c *Controller) Close() {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
}

// ===== EVENT LOOP =====

func (c *Controller) post(ev event) (eventReply, error) {
	ev.reply = make(chan eventReply, 1)
	select {
	case c.events <- ev:
	case <-c.quit:
		return eventReply{}, ErrAttemptEnded
	}
	select {
	case reply := <-ev.reply:
		return reply, nil
	case <-c.quit:
		return eventReply{}, ErrAttemptEnded
	}
}

// postAsync delivers timer and task events without blocking forever on a
// closed loop.
func (c *Controller) postAsync(ev event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Controller) run() {
	for {
		select {
		case <-c.quit:
			if c.timer != nil {
				c.timer.Stop()
			}
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev event) {
	var reply eventReply

	switch ev.kind {
	case evAnswer:
		reply.err = c.handleAnswer(ev.questionID, ev.input)
	case evNavigate:
		reply.err = c.handleNavigate(ev.direction)
	case evAdvance:
		reply.err = c.handleAdvance(false)
	case evSubmitTest:
		reply.err = c.handleSubmitTest()
	case evReview:
		reply.section, reply.err = c.handleReview(ev.sectionIndex)
	case evRetry:
		reply.err = c.handleRetry()
	case evAbandon:
		reply.err = c.handleAbandon()
	case evState:
		reply.view = c.buildView()
	case evTimeout:
		c.handleTimeout(ev.timerGen)
	case evSectionResult:
		c.handleSectionResult(ev.sectionID, ev.sectionResult, ev.taskErr)
	case evFinalResult:
		c.handleFinalResult(ev.finalResult, ev.taskErr)
	}

	if ev.reply != nil {
		ev.reply <- reply
	}
}

// ===== STATE TRANSITIONS =====

func (c *Controller) active() bool {
	return c.status == models.AttemptSectionActive || c.status == models.AttemptSectionComplete
}

func (c *Controller) currentSection() *models.Section {
	return &c.test.Sections[c.secIdx]
}

func (c *Controller) handleAnswer(questionID string, input AnswerInput) error {
	if !c.active() {
		return ErrAttemptNotActive
	}

	section := c.currentSection()
	question, ok := section.QuestionByID(questionID)
	if !ok {
		return ErrOutOfScopeAnswer
	}

	answer, err := buildAnswer(*question, input)
	if err != nil {
		return err
	}

	store := c.stores[section.ID]
	if err := store.Set(answer); err != nil {
		return err
	}

	// An overwrite can empty a previously valid answer, so the status is
	// recomputed in both directions.
	if store.IsComplete(section.Questions) {
		c.status = models.AttemptSectionComplete
	} else {
		c.status = models.AttemptSectionActive
	}

	c.saveSnapshot()
	return nil
}

func (c *Controller) handleNavigate(direction string) error {
	if !c.active() {
		return ErrAttemptNotActive
	}

	section := c.currentSection()
	switch direction {
	case "next":
		if c.qIdx+1 < len(section.Questions) {
			c.qIdx++
		}
	case "previous":
		if c.qIdx > 0 {
			c.qIdx--
		}
	default:
		return fmt.Errorf("unknown navigation direction %q", direction)
	}
	return nil
}

// handleAdvance submits the active section exactly once and moves on.
// force is set by the timeout path, which may advance an incomplete
// section.
func (c *Controller) handleAdvance(force bool) error {
	if !c.active() {
		if c.status == models.AttemptSubmitting {
			return ErrAlreadySubmitting
		}
		return ErrAttemptNotActive
	}

	section := c.currentSection()
	store := c.stores[section.ID]

	if !force && !store.IsComplete(section.Questions) {
		return ErrSectionNotComplete
	}

	// Stop and discard the timer before anything else; no section banks
	// unused time and a late fire must find a stale generation.
	c.destroyTimer()

	store.Freeze()
	c.submitted[section.ID] = true
	c.dispatchSection(*section, store)

	if c.secIdx+1 < len(c.test.Sections) {
		c.activateSection(c.secIdx + 1)
	} else {
		c.submitLatch.Store(true)
		c.status = models.AttemptSubmitting
		c.maybeFinalize()
	}

	c.saveSnapshot()
	return nil
}

func (c *Controller) handleSubmitTest() error {
	if c.status.Terminal() {
		return ErrAttemptEnded
	}

	// First caller wins; the loser observes the latch and makes no
	// network call.
	if !c.submitLatch.CompareAndSwap(false, true) {
		return ErrAlreadySubmitting
	}

	for c.active() {
		section := c.currentSection()
		if err := c.stores[section.ID].FillEmpty(section.Questions); err != nil {
			return err
		}
		if err := c.handleAdvance(true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) handleTimeout(gen int) {
	// A replaced timer may still fire once; the generation mismatch
	// identifies it as stale.
	if gen != c.timerGen || !c.active() {
		return
	}

	section := c.currentSection()
	c.logger.Info("Section timed out", "section_id", section.ID)
	if c.onTimeout != nil {
		go c.onTimeout(c.attemptID, section.ID, c.studentID)
	}

	if c.secIdx+1 >= len(c.test.Sections) {
		// Last section: the timeout races a manual submit for the final
		// submission sequence.
		if !c.submitLatch.CompareAndSwap(false, true) {
			return
		}
	}

	if err := c.stores[section.ID].FillEmpty(section.Questions); err != nil {
		c.logger.LogError(err, "Failed to fill empty answers on timeout")
	}
	if err := c.handleAdvance(true); err != nil {
		c.logger.LogError(err, "Failed to advance timed-out section")
	}
}

func (c *Controller) handleReview(index int) (models.SectionView, error) {
	if index < 0 || index >= len(c.test.Sections) {
		return models.SectionView{}, ErrReviewNotAllowed
	}

	section := c.test.Sections[index]
	if !c.submitted[section.ID] {
		return models.SectionView{}, ErrReviewNotAllowed
	}

	return models.SectionView{
		SectionID: section.ID,
		Name:      section.Name,
		Questions: section.Questions,
		Answers:   c.stores[section.ID].Snapshot(),
		Score:     c.sectionScores[section.ID],
		Submitted: true,
	}, nil
}

func (c *Controller) handleRetry() error {
	if c.status.Terminal() {
		return ErrAttemptEnded
	}
	if len(c.failed) == 0 && !(c.status == models.AttemptSubmitting && !c.finalSent && c.inflight == 0 && c.lastErr != nil) {
		return ErrNothingToRetry
	}

	c.lastErr = nil
	for sectionID := range c.failed {
		delete(c.failed, sectionID)
		for i := range c.test.Sections {
			if c.test.Sections[i].ID == sectionID {
				c.dispatchSection(c.test.Sections[i], c.stores[sectionID])
			}
		}
	}
	c.maybeFinalize()
	return nil
}

func (c *Controller) handleAbandon() error {
	if c.status.Terminal() {
		return ErrAttemptEnded
	}

	c.destroyTimer()
	c.status = models.AttemptAbandoned
	c.deleteSnapshot()
	c.logger.Info("Attempt abandoned", "student_id", c.studentID)
	return nil
}

func (c *Controller) handleSectionResult(sectionID string, result *remote.SectionResult, err error) {
	if c.status.Terminal() {
		// Resolved-but-stale completions are dropped, not applied.
		return
	}

	c.inflight--
	if err != nil {
		c.failed[sectionID] = true
		c.lastErr = err
		c.logger.LogError(err, "Section submission failed", "section_id", sectionID)
		return
	}

	c.sectionScores[sectionID] = result.Score
	c.logger.Info("Section submitted", "section_id", sectionID)
	c.maybeFinalize()
	c.saveSnapshot()
}

func (c *Controller) handleFinalResult(result *remote.FinalResult, err error) {
	if c.status.Terminal() {
		return
	}

	if err != nil {
		c.finalSent = false
		c.lastErr = err
		c.logger.LogError(err, "Final submission failed")
		return
	}

	c.finalResult = result
	c.status = models.AttemptCompleted
	c.lastErr = nil
	c.deleteSnapshot()

	c.logger.Info("Attempt completed",
		"total_score", result.TotalScore,
		"total_questions", result.TotalQuestions)

	if c.onCompleted != nil {
		completed := CompletedAttempt{
			View:          c.buildView(),
			Answers:       make(map[string][]models.Answer, len(c.test.Sections)),
			SectionScores: c.sectionScores,
			Result:        *result,
			StartedAt:     c.startedAt,
			CompletedAt:   time.Now(),
		}
		for i := range c.test.Sections {
			section := c.test.Sections[i]
			completed.Answers[section.ID] = c.stores[section.ID].Ordered(section.Questions)
		}
		go c.onCompleted(completed)
	}
}

// ===== HELPERS (event-loop owned) =====

func (c *Controller) activateSection(index int) {
	c.secIdx = index
	c.qIdx = 0

	section := c.currentSection()
	if c.stores[section.ID].IsComplete(section.Questions) {
		// Zero-question sections are immediately eligible to advance.
		c.status = models.AttemptSectionComplete
	} else {
		c.status = models.AttemptSectionActive
	}

	c.timerGen++
	gen := c.timerGen
	c.timer = NewSectionTimer(section.TimeLimitSeconds, c.tick, func() {
		c.postAsync(event{kind: evTimeout, timerGen: gen})
	})
}

func (c *Controller) destroyTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

func (c *Controller) dispatchSection(section models.Section, store *AnswerStore) {
	answers := store.Ordered(section.Questions)
	payloads := make([]remote.AnswerPayload, len(answers))
	for i, a := range answers {
		payloads[i] = remote.AnswerPayload{QuestionID: a.QuestionID, Value: a.Value()}
	}

	c.inflight++
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result, err := c.coordinator.SubmitSection(ctx, c.attemptID, section.ID, payloads)
		c.postAsync(event{kind: evSectionResult, sectionID: section.ID, sectionResult: result, taskErr: err})
	}()
}

// maybeFinalize fires the final submission once every section submission
// has landed. Guarded by finalSent so it runs at most once per outcome.
func (c *Controller) maybeFinalize() {
	if c.status != models.AttemptSubmitting || c.finalSent || c.inflight > 0 || len(c.failed) > 0 {
		return
	}

	c.finalSent = true
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result, err := c.coordinator.SubmitTest(ctx, c.attemptID)
		c.postAsync(event{kind: evFinalResult, finalResult: result, taskErr: err})
	}()
}

func (c *Controller) buildView() models.AttemptView {
	view := models.AttemptView{
		AttemptID:     c.attemptID,
		TestID:        c.testID,
		StudentID:     c.studentID,
		Status:        c.status,
		SectionIndex:  c.secIdx,
		QuestionIndex: c.qIdx,
		TotalSections: len(c.test.Sections),
		StartedAt:     c.startedAt,
	}

	if c.timer != nil && c.active() {
		view.RemainingSeconds = c.timer.Remaining()
	}

	for i := range c.test.Sections {
		sectionID := c.test.Sections[i].ID
		if c.submitted[sectionID] {
			view.SubmittedSection = append(view.SubmittedSection, sectionID)
		}
		if c.failed[sectionID] {
			view.PendingSections = append(view.PendingSections, sectionID)
		}
		view.AnsweredCount += c.stores[sectionID].Len()
	}

	if c.lastErr != nil {
		view.LastError = c.lastErr.Error()
	}
	if c.finalResult != nil {
		view.TotalScore = &c.finalResult.TotalScore
		view.TotalQuestions = &c.finalResult.TotalQuestions
	}
	return view
}

func (c *Controller) saveSnapshot() {
	if c.snapshots == nil {
		return
	}
	view := c.buildView()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.snapshots.Save(ctx, view); err != nil {
			c.logger.Warn("Failed to save attempt snapshot", "error", err)
		}
	}()
}

func (c *Controller) deleteSnapshot() {
	if c.snapshots == nil {
		return
	}
	attemptID := c.attemptID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.snapshots.Delete(ctx, attemptID); err != nil {
			c.logger.Warn("Failed to delete attempt snapshot", "error", err)
		}
	}()
}

func buildAnswer(q models.Question, input AnswerInput) (models.Answer, error) {
	switch q.Type {
	case models.MultipleChoice:
		if input.Selected == "" {
			return models.Answer{}, ErrInvalidAnswer
		}
		if _, ok := q.Options[input.Selected]; !ok {
			return models.Answer{}, ErrInvalidAnswer
		}
		return models.ChoiceAnswer(q.ID, input.Selected), nil
	case models.FreeText:
		return models.TextAnswer(q.ID, models.FreeText, input.Text), nil
	case models.AudioPrompt:
		return models.TextAnswer(q.ID, models.AudioPrompt, input.Text), nil
	case models.SpeechResponse:
		if input.AudioBlobRef == "" {
			return models.Answer{}, ErrInvalidAnswer
		}
		return models.SpeechAnswer(q.ID, input.Transcript, input.AudioBlobRef, input.Validation), nil
	default:
		return models.Answer{}, ErrInvalidAnswer
	}
}
