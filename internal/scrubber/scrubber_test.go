package scrubber

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/events"
	"github.com/llehouerou/scrubber/internal/provider"
	"github.com/llehouerou/scrubber/internal/rewrite"
	"github.com/llehouerou/scrubber/internal/scrobble"
	"github.com/llehouerou/scrubber/internal/state"
	"github.com/llehouerou/scrubber/internal/storage"
)

// fakeSource serves a fixed newest-first track list.
type fakeSource struct {
	mu           sync.Mutex
	tracks       []scrobble.Track
	artistTracks map[string][]scrobble.Track
	refreshErr   error
	refreshCalls int
	lastBound    int64
}

func (f *fakeSource) Refresh(_ context.Context, bound int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.lastBound = bound
	return f.refreshErr
}

func (f *fakeSource) Tracks() []scrobble.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracks
}

func (f *fakeSource) ArtistTracks(_ context.Context, artist string) ([]scrobble.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.artistTracks[artist], nil
}

func (f *fakeSource) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// fakeSubmitter records submitted edits.
type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []scrobble.Edit
	err       error
}

func (f *fakeSubmitter) SubmitEdit(_ context.Context, edit scrobble.Edit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, edit)
	return nil
}

func (f *fakeSubmitter) edits() []scrobble.Edit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

// fakeProvider suggests a remaster cleanup for any track whose name
// carries the suffix.
type fakeProvider struct {
	err error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) AnalyzeTracks(_ context.Context, tracks []scrobble.Track, _ provider.Options) (map[int][]provider.Suggestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	results := make(map[int][]provider.Suggestion)
	for i, t := range tracks {
		const suffix = " - Remaster"
		if !strings.HasSuffix(t.Name, suffix) {
			continue
		}
		edit := scrobble.NewNoOpEdit(t)
		edit.TrackName = strings.TrimSuffix(t.Name, suffix)
		results[i] = []provider.Suggestion{{
			Edit:     &edit,
			Provider: "fake",
			Reason:   "strip remaster suffix",
		}}
	}
	return results, nil
}

type fixture struct {
	scrubber  *Scrubber
	store     *storage.MemoryStore
	source    *fakeSource
	submitter *fakeSubmitter
	hub       *events.Hub
	sub       *events.Subscription
}

func newFixture(t *testing.T, cfg Config, deps Deps) *fixture {
	t.Helper()

	f := &fixture{
		store:     storage.NewMemoryStore(),
		source:    &fakeSource{},
		submitter: &fakeSubmitter{},
		hub:       events.NewHub(),
	}
	if deps.Store == nil {
		deps.Store = f.store
	} else {
		f.store = deps.Store.(*storage.MemoryStore)
	}
	if deps.Source == nil {
		deps.Source = f.source
	}
	if deps.Provider == nil {
		deps.Provider = &fakeProvider{}
	}
	if deps.Submitter == nil {
		deps.Submitter = f.submitter
	}
	deps.Hub = f.hub
	deps.Logger = log.New(io.Discard)

	f.sub = f.hub.SubscribeBuffered(1024)
	f.scrubber = New(cfg, deps)
	return f
}

// drainEvents collects everything currently buffered on the fixture
// subscription.
func (f *fixture) drainEvents() []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-f.sub.Events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func countKind(evts []events.Event, kind events.Kind) int {
	n := 0
	for _, e := range evts {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func autoApplySettings(t *testing.T, store *storage.MemoryStore) {
	t.Helper()
	if err := store.SaveSettings(storage.Settings{}); err != nil {
		t.Fatal(err)
	}
}

func setAnchor(t *testing.T, store *storage.MemoryStore, anchor int64) {
	t.Helper()
	if err := store.SaveTimestamp(storage.TimestampState{Anchor: anchor}); err != nil {
		t.Fatal(err)
	}
}

func loadAnchor(t *testing.T, store *storage.MemoryStore) int64 {
	t.Helper()
	ts, err := store.LoadTimestamp()
	if err != nil {
		t.Fatal(err)
	}
	return ts.Anchor
}

func TestFirstRunSeedsAnchor(t *testing.T) {
	f := newFixture(t, Config{}, Deps{})
	f.source.tracks = []scrobble.Track{
		{Name: "New Song - Remaster", Artist: "A", Timestamp: 300},
		{Name: "Older Song - Remaster", Artist: "A", Timestamp: 200},
	}
	autoApplySettings(t, f.store)

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if got := loadAnchor(t, f.store); got != 300 {
		t.Errorf("anchor = %d, want 300 (newest track)", got)
	}
	if len(f.submitter.edits()) != 0 {
		t.Errorf("first run must not bulk-edit history, submitted %d edits", len(f.submitter.edits()))
	}
}

func TestCycleProcessesNewTracksOldestFirst(t *testing.T) {
	f := newFixture(t, Config{}, Deps{})
	const anchor = int64(1000)
	setAnchor(t, f.store, anchor)
	autoApplySettings(t, f.store)

	// Newest first, as a source reports them. One needs an edit.
	f.source.tracks = []scrobble.Track{
		{Name: "Three", Artist: "A", Timestamp: anchor + 3},
		{Name: "Two - Remaster", Artist: "A", Timestamp: anchor + 2},
		{Name: "One", Artist: "A", Timestamp: anchor + 1},
		{Name: "Already Done", Artist: "A", Timestamp: anchor},
	}

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	evts := f.drainEvents()
	if got := countKind(evts, events.KindTrackProcessed); got != 3 {
		t.Errorf("track_processed events = %d, want 3 (anchored track excluded)", got)
	}

	edits := f.submitter.edits()
	if len(edits) != 1 {
		t.Fatalf("submitted %d edits, want 1", len(edits))
	}
	if edits[0].TrackName != "Two" {
		t.Errorf("edited track name = %q, want %q", edits[0].TrackName, "Two")
	}

	if got := loadAnchor(t, f.store); got != anchor+3 {
		t.Errorf("anchor = %d, want %d", got, anchor+3)
	}
}

func TestDefaultSettingsRouteEditsToPendingQueue(t *testing.T) {
	f := newFixture(t, Config{}, Deps{})
	setAnchor(t, f.store, 1000)
	f.source.tracks = []scrobble.Track{
		{Name: "Two - Remaster", Artist: "A", Timestamp: 1002},
	}

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if len(f.submitter.edits()) != 0 {
		t.Error("confirmation-gated edit must not be submitted")
	}
	pending, err := f.store.LoadPendingEdits()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending edits = %d, want 1", len(pending))
	}
	if pending[0].Edit.TrackName != "Two" {
		t.Errorf("pending edit track name = %q, want %q", pending[0].Edit.TrackName, "Two")
	}
	if pending[0].ID == "" {
		t.Error("pending edit must carry an ID")
	}

	evts := f.drainEvents()
	if countKind(evts, events.KindPendingEditCreated) != 1 {
		t.Error("expected a pending_edit_created event")
	}
	// Anchor still advances: the track was handled.
	if got := loadAnchor(t, f.store); got != 1002 {
		t.Errorf("anchor = %d, want 1002", got)
	}
}

// ruleProposingProvider proposes one rewrite rule for the first track
// it analyzes.
type ruleProposingProvider struct {
	rule rewrite.Rule
}

func (p *ruleProposingProvider) Name() string { return "rule-proposer" }

func (p *ruleProposingProvider) AnalyzeTracks(_ context.Context, tracks []scrobble.Track, _ provider.Options) (map[int][]provider.Suggestion, error) {
	if len(tracks) == 0 {
		return nil, nil
	}
	return map[int][]provider.Suggestion{
		0: {{
			Rule:     &p.rule,
			Provider: "rule-proposer",
			Reason:   "recurring remaster suffix",
		}},
	}, nil
}

func remasterRule(t *testing.T) rewrite.Rule {
	t.Helper()
	sd, err := rewrite.NewSdRule(`^(.*) - Remaster$`, "$1", "")
	if err != nil {
		t.Fatal(err)
	}
	return rewrite.Rule{Name: "strip remaster", TrackName: sd}
}

func TestRuleProposalQueuedUnderDefaultSettings(t *testing.T) {
	f := newFixture(t, Config{}, Deps{Provider: &ruleProposingProvider{rule: remasterRule(t)}})
	setAnchor(t, f.store, 1000)
	f.source.tracks = []scrobble.Track{
		{Name: "Two - Remaster", Artist: "A", Timestamp: 1002},
	}

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	pending, err := f.store.LoadPendingRules()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending rules = %d, want 1", len(pending))
	}
	if pending[0].ID == "" {
		t.Error("pending rule must carry an ID")
	}
	if pending[0].Rule.Name != "strip remaster" {
		t.Errorf("pending rule name = %q, want %q", pending[0].Rule.Name, "strip remaster")
	}

	rules, err := f.store.LoadRules()
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 0 {
		t.Errorf("rules = %d, proposal must not be adopted before confirmation", len(rules))
	}

	evts := f.drainEvents()
	if countKind(evts, events.KindRuleProposed) != 1 {
		t.Error("expected a rule_proposed event")
	}
}

func TestRuleProposalAutoAdoptedWithoutConfirmationGate(t *testing.T) {
	f := newFixture(t, Config{}, Deps{Provider: &ruleProposingProvider{rule: remasterRule(t)}})
	setAnchor(t, f.store, 1000)
	autoApplySettings(t, f.store)
	f.source.tracks = []scrobble.Track{
		{Name: "Two - Remaster", Artist: "A", Timestamp: 1002},
	}

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	rules, err := f.store.LoadRules()
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].Name != "strip remaster" {
		t.Fatalf("rules = %v, want the adopted proposal", rules)
	}

	pending, err := f.store.LoadPendingRules()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending rules = %d, auto-adopted proposal must not queue", len(pending))
	}

	evts := f.drainEvents()
	if countKind(evts, events.KindRuleProposed) != 1 {
		t.Error("expected a rule_proposed event")
	}
}

func TestDryRunSubmitsNothing(t *testing.T) {
	f := newFixture(t, Config{DryRun: true}, Deps{})
	setAnchor(t, f.store, 1000)
	autoApplySettings(t, f.store)
	f.source.tracks = []scrobble.Track{
		{Name: "Two - Remaster", Artist: "A", Timestamp: 1002},
	}

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if len(f.submitter.edits()) != 0 {
		t.Error("dry run must not submit edits")
	}
	evts := f.drainEvents()
	if countKind(evts, events.KindTrackSkipped) != 1 {
		t.Error("expected a track_skipped event for the dry-run edit")
	}
}

func TestEditFailureQueuesRetryAndAnchorAdvances(t *testing.T) {
	retries := state.NewMock()
	f := newFixture(t, Config{}, Deps{Retries: retries})
	setAnchor(t, f.store, 1000)
	autoApplySettings(t, f.store)
	f.submitter.err = errors.New("service unavailable")
	f.source.tracks = []scrobble.Track{
		{Name: "Two - Remaster", Artist: "A", Timestamp: 1002},
	}

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	evts := f.drainEvents()
	if countKind(evts, events.KindTrackEditFailed) != 1 {
		t.Error("expected a track_edit_failed event")
	}
	queued, _ := retries.GetFailedEdits()
	if len(queued) != 1 {
		t.Fatalf("retry queue = %d entries, want 1", len(queued))
	}
	// The batch still commits.
	if got := loadAnchor(t, f.store); got != 1002 {
		t.Errorf("anchor = %d, want 1002", got)
	}
}

func TestRetryQueueDrainedOnNextCycle(t *testing.T) {
	retries := state.NewMock()
	edit := scrobble.NewNoOpEdit(scrobble.Track{Name: "Two - Remaster", Artist: "A", Timestamp: 900})
	edit.TrackName = "Two"
	if err := retries.AddFailedEdit(edit, "service unavailable"); err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, Config{}, Deps{Retries: retries})
	setAnchor(t, f.store, 1000)
	autoApplySettings(t, f.store)

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if len(f.submitter.edits()) != 1 {
		t.Fatalf("submitted %d edits, want the retried one", len(f.submitter.edits()))
	}
	queued, _ := retries.GetFailedEdits()
	if len(queued) != 0 {
		t.Errorf("retry queue = %d entries, want 0 after success", len(queued))
	}
}

func TestBatchingPersistsAnchorPerBatch(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 2}, Deps{})
	setAnchor(t, f.store, 1000)
	autoApplySettings(t, f.store)
	f.source.tracks = []scrobble.Track{
		{Name: "Five", Artist: "A", Timestamp: 1005},
		{Name: "Four", Artist: "A", Timestamp: 1004},
		{Name: "Three", Artist: "A", Timestamp: 1003},
		{Name: "Two", Artist: "A", Timestamp: 1002},
		{Name: "One", Artist: "A", Timestamp: 1001},
	}

	if err := f.scrubber.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	evts := f.drainEvents()
	// Three batches: 2 + 2 + 1.
	if got := countKind(evts, events.KindAnchorUpdated); got != 3 {
		t.Errorf("anchor_updated events = %d, want 3", got)
	}
	if got := loadAnchor(t, f.store); got != 1005 {
		t.Errorf("anchor = %d, want 1005", got)
	}
}

// failingAnchorStore wraps MemoryStore and fails anchor saves.
type failingAnchorStore struct {
	*storage.MemoryStore
}

func (f *failingAnchorStore) SaveTimestamp(storage.TimestampState) error {
	return errors.New("disk full")
}

func TestAnchorPersistFailureIsFatal(t *testing.T) {
	inner := storage.NewMemoryStore()
	if err := inner.SaveTimestamp(storage.TimestampState{Anchor: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := inner.SaveSettings(storage.Settings{}); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{tracks: []scrobble.Track{
		{Name: "Two", Artist: "A", Timestamp: 1002},
	}}
	hub := events.NewHub()
	defer hub.Close()

	s := New(Config{}, Deps{
		Store:     &failingAnchorStore{inner},
		Source:    src,
		Provider:  &fakeProvider{},
		Submitter: &fakeSubmitter{},
		Hub:       hub,
		Logger:    log.New(io.Discard),
	})

	err := s.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected error when anchor cannot be persisted")
	}
	if !isFatal(err) {
		t.Errorf("anchor persist failure must be fatal, got %v", err)
	}
}

func TestRunOnceWhileRunningRejected(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, Config{Interval: time.Hour}, Deps{})
		autoApplySettings(t, f.store)

		if err := f.scrubber.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		synctest.Wait()

		if err := f.scrubber.RunOnce(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("RunOnce while running = %v, want ErrAlreadyRunning", err)
		}

		f.scrubber.Stop()
	})
}

func TestStartStopLifecycle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, Config{Interval: time.Hour}, Deps{})
		autoApplySettings(t, f.store)

		if got := f.scrubber.Status(); got != StatusStopped {
			t.Fatalf("initial status = %q, want stopped", got)
		}

		if err := f.scrubber.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if err := f.scrubber.Start(); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
		}

		synctest.Wait()
		if got := f.scrubber.Status(); got != StatusSleeping {
			t.Errorf("status after first cycle = %q, want sleeping", got)
		}

		f.scrubber.Stop()
		if got := f.scrubber.Status(); got != StatusStopped {
			t.Errorf("status after Stop = %q, want stopped", got)
		}

		evts := f.drainEvents()
		if countKind(evts, events.KindStarted) != 1 {
			t.Error("expected a started event")
		}
		if countKind(evts, events.KindStopped) != 1 {
			t.Error("expected a stopped event")
		}
	})
}

func TestIntervalDrivesCycles(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, Config{Interval: time.Minute}, Deps{})
		autoApplySettings(t, f.store)

		if err := f.scrubber.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		synctest.Wait()
		if got := f.source.refreshCount(); got != 1 {
			t.Fatalf("refresh calls = %d, want 1", got)
		}

		time.Sleep(time.Minute + time.Second)
		synctest.Wait()
		if got := f.source.refreshCount(); got != 2 {
			t.Errorf("refresh calls after interval = %d, want 2", got)
		}

		f.scrubber.Stop()
	})
}

func TestProcessNowWakesSleepingLoop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, Config{Interval: time.Hour}, Deps{})
		autoApplySettings(t, f.store)

		if err := f.scrubber.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		synctest.Wait()
		if got := f.source.refreshCount(); got != 1 {
			t.Fatalf("refresh calls = %d, want 1", got)
		}

		f.scrubber.ProcessNow()
		synctest.Wait()
		if got := f.source.refreshCount(); got != 2 {
			t.Errorf("refresh calls after ProcessNow = %d, want 2", got)
		}

		f.scrubber.Stop()
	})
}

func TestProcessArtistBypassesAnchor(t *testing.T) {
	f := newFixture(t, Config{}, Deps{})
	setAnchor(t, f.store, 5000)
	autoApplySettings(t, f.store)
	f.source.artistTracks = map[string][]scrobble.Track{
		"A": {
			{Name: "Old Song - Remaster", Artist: "A", Timestamp: 100},
		},
	}

	if err := f.scrubber.ProcessArtist(context.Background(), "A"); err != nil {
		t.Fatalf("ProcessArtist failed: %v", err)
	}

	if len(f.submitter.edits()) != 1 {
		t.Fatalf("submitted %d edits, want 1 despite track predating the anchor", len(f.submitter.edits()))
	}
	if got := loadAnchor(t, f.store); got != 5000 {
		t.Errorf("anchor = %d, must be untouched by artist processing", got)
	}
}

func TestProcessLastN(t *testing.T) {
	f := newFixture(t, Config{}, Deps{})
	setAnchor(t, f.store, 5000)
	autoApplySettings(t, f.store)
	f.source.tracks = []scrobble.Track{
		{Name: "Three - Remaster", Artist: "A", Timestamp: 3000},
		{Name: "Two - Remaster", Artist: "A", Timestamp: 2000},
		{Name: "One - Remaster", Artist: "A", Timestamp: 1000},
	}

	if err := f.scrubber.ProcessLastN(context.Background(), 2); err != nil {
		t.Fatalf("ProcessLastN failed: %v", err)
	}

	edits := f.submitter.edits()
	if len(edits) != 2 {
		t.Fatalf("submitted %d edits, want 2", len(edits))
	}
	// Oldest of the selected pair first.
	if edits[0].TrackName != "Two" || edits[1].TrackName != "Three" {
		t.Errorf("edit order = %q, %q; want Two then Three", edits[0].TrackName, edits[1].TrackName)
	}
	if got := loadAnchor(t, f.store); got != 5000 {
		t.Errorf("anchor = %d, must be untouched", got)
	}
}

func TestSetAnchorMovesBackward(t *testing.T) {
	f := newFixture(t, Config{}, Deps{})
	setAnchor(t, f.store, 5000)

	if err := f.scrubber.SetAnchor(1000); err != nil {
		t.Fatalf("SetAnchor failed: %v", err)
	}
	if got := loadAnchor(t, f.store); got != 1000 {
		t.Errorf("anchor = %d, want 1000 (explicit backward move)", got)
	}
	evts := f.drainEvents()
	if countKind(evts, events.KindAnchorUpdated) != 1 {
		t.Error("expected an anchor_updated event")
	}
}

func TestCycleErrorDoesNotStopLoop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, Config{Interval: time.Minute}, Deps{})
		autoApplySettings(t, f.store)
		f.source.refreshErr = errors.New("network down")

		if err := f.scrubber.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		synctest.Wait()

		if got := f.scrubber.Status(); got != StatusSleeping {
			t.Errorf("status after failed cycle = %q, want sleeping", got)
		}
		evts := f.drainEvents()
		if countKind(evts, events.KindError) == 0 {
			t.Error("expected an error event for the failed cycle")
		}

		f.scrubber.Stop()
	})
}
