package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assistant/internal/booking"
	"assistant/internal/chunker"
	"assistant/internal/dialogue"
	"assistant/internal/embedding/tfidf"
	"assistant/internal/extract"
	"assistant/internal/generator"
	"assistant/internal/generator/extractive"
	"assistant/internal/retrieval"
	"assistant/internal/session"
	sessionmemory "assistant/internal/session/memory"
	storagememory "assistant/internal/storage/memory"
	vectormemory "assistant/internal/vectorstore/memory"
)

const policy = "Opening hours are nine to five on weekdays. " +
	"Parking is available behind the clinic building. " +
	"Cancellations need twenty four hours notice."

type options struct {
	sessions session.Store
	prefill  bool
	scope    string
	idleTTL  time.Duration
	now      func() time.Time
}

func newAssistant(t *testing.T, opts options) (*Assistant, *storagememory.DB) {
	t.Helper()
	l := zap.NewNop()
	db := storagememory.New()
	if opts.sessions == nil {
		opts.sessions = sessionmemory.New()
	}
	machine := booking.NewMachine(l, db, booking.WithPrefill(opts.prefill))
	orch := dialogue.New(l, machine, nil, extractive.New(1), time.Second)
	newEngine := func(name string) *retrieval.Engine {
		return retrieval.NewEngine(l, name, chunker.NewWindowChunker(chunker.UnitWords, 8, 0),
			tfidf.NewEmbedder(), vectormemory.Factory(), retrieval.Config{})
	}
	return New(l, Config{
		Sessions:     opts.sessions,
		Bookings:     db,
		Orchestrator: orch,
		NewEngine:    newEngine,
		Scope:        opts.scope,
		IdleTTL:      opts.idleTTL,
		Now:          opts.now,
	}), db
}

func say(t *testing.T, a *Assistant, session, text string) string {
	t.Helper()
	reply, err := a.SubmitMessage(context.Background(), session, text)
	require.NoError(t, err)
	return reply
}

func TestAssistant_QuestionWithoutDocument(t *testing.T) {
	a, _ := newAssistant(t, options{})
	assert.Equal(t, generator.Fallback, say(t, a, "s1", "Where can I park?"))
}

func TestAssistant_UploadAndAsk(t *testing.T) {
	a, _ := newAssistant(t, options{})
	res, err := a.SubmitDocument(context.Background(), "s1", "policy.txt", []byte(policy))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunkCount)

	assert.Contains(t, say(t, a, "s1", "Where is parking?"), "Parking is available")

	// Another session has no document.
	assert.Equal(t, generator.Fallback, say(t, a, "s2", "Where is parking?"))
}

func TestAssistant_GlobalScopeSharesIndex(t *testing.T) {
	a, _ := newAssistant(t, options{scope: ScopeGlobal})
	_, err := a.SubmitDocument(context.Background(), "s1", "policy.txt", []byte(policy))
	require.NoError(t, err)

	assert.Contains(t, say(t, a, "s2", "Where is parking?"), "Parking is available")
}

func TestAssistant_UploadErrors(t *testing.T) {
	a, _ := newAssistant(t, options{})
	ctx := context.Background()

	_, err := a.SubmitDocument(ctx, "s1", "slides.docx", []byte("text"))
	assert.ErrorIs(t, err, ErrUnsupportedDocument)

	_, err = a.SubmitDocument(ctx, "s1", "empty.txt", []byte("   \n"))
	assert.ErrorIs(t, err, extract.ErrNoText)

	_, err = a.SubmitDocument(ctx, "", "policy.txt", []byte(policy))
	assert.ErrorIs(t, err, ErrEmptySession)

	// Failed uploads leave no index behind.
	assert.Equal(t, generator.Fallback, say(t, a, "s1", "Where is parking?"))
}

func TestAssistant_BookingFlowAndListing(t *testing.T) {
	a, _ := newAssistant(t, options{})
	ctx := context.Background()

	assert.Equal(t, booking.FieldName.Prompt(), say(t, a, "s1", "I'd like to book an appointment"))
	for _, v := range []string{"Ada Lovelace", "ada@example.com", "9876543210", "consultation", "2024-03-15", "14:30"} {
		say(t, a, "s1", v)
	}
	assert.Equal(t, "Booking confirmed! ID: 1.", say(t, a, "s1", "confirm"))

	list, err := a.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ada@example.com", list[0].Email)
}

func TestAssistant_SessionsAreIsolated(t *testing.T) {
	a, _ := newAssistant(t, options{})

	say(t, a, "s1", "book please")
	say(t, a, "s1", "Ada")
	assert.Equal(t, booking.FieldName.Prompt(), say(t, a, "s2", "reservation"))
	assert.Equal(t, booking.FieldPhone.Prompt(), say(t, a, "s1", "ada@example.com"))
	assert.Equal(t, booking.FieldEmail.Prompt(), say(t, a, "s2", "Grace"))
}

func TestAssistant_ConcurrentTurnsOfOneSession(t *testing.T) {
	a, db := newAssistant(t, options{})
	say(t, a, "s1", "book")
	for _, v := range []string{"Ada Lovelace", "ada@example.com", "9876543210", "consultation", "2024-03-15", "14:30"} {
		say(t, a, "s1", v)
	}

	var wg sync.WaitGroup
	replies := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := a.SubmitMessage(context.Background(), "s1", "confirm")
			assert.NoError(t, err)
			replies <- reply
		}()
	}
	wg.Wait()
	close(replies)

	confirmed := 0
	for r := range replies {
		if r == "Booking confirmed! ID: 1." {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
	list, err := db.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 0, a.locks.len())
}

func TestAssistant_PrefillFromDocument(t *testing.T) {
	a, _ := newAssistant(t, options{prefill: true})
	doc := "Name: Ada Lovelace\nContact ada@example.com or 9876543210.\nPreferred 2024-03-15 at 14:30."

	res, err := a.SubmitDocument(context.Background(), "s1", "form.txt", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 5, res.PrefilledFields)

	assert.Equal(t, booking.FieldBookingType.Prompt(), say(t, a, "s1", "book"))
	reply := say(t, a, "s1", "consultation")
	assert.Contains(t, reply, "Name: Ada Lovelace")
	assert.Contains(t, reply, "Time: 14:30")
}

type failingStore struct {
	mock.Mock
}

func (f *failingStore) Load(ctx context.Context, id string) (*booking.ConversationState, error) {
	args := f.Called(ctx, id)
	st, _ := args.Get(0).(*booking.ConversationState)
	return st, args.Error(1)
}

func (f *failingStore) Save(ctx context.Context, id string, st *booking.ConversationState) error {
	return f.Called(ctx, id, st).Error(0)
}

func (f *failingStore) Delete(ctx context.Context, id string) error {
	return f.Called(ctx, id).Error(0)
}

func TestAssistant_SessionStoreErrors(t *testing.T) {
	down := errors.New("redis down")

	st := new(failingStore)
	st.On("Load", mock.Anything, "s1").Return(nil, down)
	a, _ := newAssistant(t, options{sessions: st})
	_, err := a.SubmitMessage(context.Background(), "s1", "hi")
	assert.ErrorIs(t, err, down)

	st = new(failingStore)
	st.On("Load", mock.Anything, "s1").Return(booking.NewState(), nil)
	st.On("Save", mock.Anything, "s1", mock.Anything).Return(down)
	a, _ = newAssistant(t, options{sessions: st})
	_, err = a.SubmitMessage(context.Background(), "s1", "hi")
	assert.ErrorIs(t, err, down)

	_, err = a.SubmitMessage(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestAssistant_EndSession(t *testing.T) {
	a, _ := newAssistant(t, options{})
	ctx := context.Background()
	_, err := a.SubmitDocument(ctx, "s1", "policy.txt", []byte(policy))
	require.NoError(t, err)
	say(t, a, "s1", "book")

	require.NoError(t, a.EndSession(ctx, "s1"))
	assert.Equal(t, generator.Fallback, say(t, a, "s1", "Where is parking?"))
	assert.Nil(t, a.engine("s1"))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAssistant_EvictIdle(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
	a, _ := newAssistant(t, options{idleTTL: time.Hour, now: clk.Now})
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		_, err := a.SubmitDocument(ctx, id, "policy.txt", []byte(policy))
		require.NoError(t, err)
	}
	clk.Advance(30 * time.Minute)
	assert.Contains(t, say(t, a, "s2", "Where is parking?"), "Parking")
	clk.Advance(40 * time.Minute)

	assert.Equal(t, 1, a.EvictIdle(ctx))
	assert.Nil(t, a.engine("s1"))
	assert.Equal(t, generator.Fallback, say(t, a, "s1", "Where is parking?"))
	assert.Contains(t, say(t, a, "s2", "Where is parking?"), "Parking")

	clk.Advance(2 * time.Hour)
	assert.Equal(t, 1, a.EvictIdle(ctx))
	assert.Equal(t, 0, a.EvictIdle(ctx))
}

func TestAssistant_EvictIdleKeepsGlobalIndex(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
	a, _ := newAssistant(t, options{scope: ScopeGlobal, idleTTL: time.Minute, now: clk.Now})
	_, err := a.SubmitDocument(context.Background(), "s1", "policy.txt", []byte(policy))
	require.NoError(t, err)

	clk.Advance(time.Hour)
	assert.Equal(t, 0, a.EvictIdle(context.Background()))
	assert.Contains(t, say(t, a, "s2", "Where is parking?"), "Parking")
}

func TestAssistant_RunJanitor(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
	a, _ := newAssistant(t, options{idleTTL: time.Minute, now: clk.Now})
	_, err := a.SubmitDocument(context.Background(), "s1", "policy.txt", []byte(policy))
	require.NoError(t, err)
	clk.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.RunJanitor(ctx, 5*time.Millisecond)
	}()

	assert.Eventually(t, func() bool {
		a.enginesMu.Lock()
		defer a.enginesMu.Unlock()
		return len(a.engines) == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

// flakySessions fails saves on demand on top of the memory store.
type flakySessions struct {
	session.Store
	saveErr   error
	deleteErr error
}

func (f *flakySessions) Save(ctx context.Context, id string, st *booking.ConversationState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, id, st)
}

func (f *flakySessions) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, id)
}

func TestAssistant_FailedSaveAfterConfirmDoesNotBookTwice(t *testing.T) {
	down := errors.New("redis down")
	fill := func(t *testing.T, a *Assistant) {
		t.Helper()
		for _, v := range []string{"book", "Ada Lovelace", "ada@example.com", "9876543210", "consultation", "2024-03-15", "14:30"} {
			say(t, a, "s1", v)
		}
	}

	t.Run("state dropped", func(t *testing.T) {
		st := &flakySessions{Store: sessionmemory.New()}
		a, db := newAssistant(t, options{sessions: st})
		fill(t, a)

		st.saveErr = down
		assert.Equal(t, "Booking confirmed! ID: 1.", say(t, a, "s1", "confirm"))
		st.saveErr = nil

		assert.Equal(t, generator.Fallback, say(t, a, "s1", "confirm"))
		list, err := db.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("store unreachable", func(t *testing.T) {
		st := &flakySessions{Store: sessionmemory.New()}
		a, db := newAssistant(t, options{sessions: st})
		fill(t, a)

		st.saveErr = down
		st.deleteErr = down
		_, err := a.SubmitMessage(context.Background(), "s1", "confirm")
		assert.ErrorIs(t, err, down)
		assert.ErrorContains(t, err, "booking 1")

		list, err := db.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
