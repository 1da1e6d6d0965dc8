package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assistant/internal/booking"
	"assistant/internal/dialogue"
	"assistant/internal/domain"
	"assistant/internal/extract"
	"assistant/internal/retrieval"
	"assistant/internal/session"
	"assistant/internal/storage"
)

var (
	ErrUnsupportedDocument = errors.New("only PDF and TXT files are supported")
	ErrEmptySession        = errors.New("session id is required")
)

// Index scopes.
const (
	ScopeSession = "session"
	ScopeGlobal  = "global"
)

const globalIndex = "global"

// EngineFactory builds an empty retrieval engine whose snapshots are named
// after name.
type EngineFactory func(name string) *retrieval.Engine

type UploadResult struct {
	ChunkCount int
	// PrefilledFields counts booking fields found in the document.
	PrefilledFields int
}

// Assistant is the turn-level entry point shared by every front-end.
type Assistant struct {
	l            *zap.Logger
	sessions     session.Store
	bookings     storage.BookingStore
	orchestrator *dialogue.Orchestrator
	extractor    extract.Extractor
	newEngine    EngineFactory
	scope        string

	idleTTL time.Duration
	now     func() time.Time

	locks *sessionLocks

	enginesMu sync.Mutex
	engines   map[string]*engineEntry
}

type engineEntry struct {
	engine    *retrieval.Engine
	sessionID string
	lastUsed  time.Time
}

type Config struct {
	Sessions     session.Store
	Bookings     storage.BookingStore
	Orchestrator *dialogue.Orchestrator
	Extractor    extract.Extractor
	NewEngine    EngineFactory
	// Scope is ScopeSession (default) or ScopeGlobal.
	Scope string
	// IdleTTL evicts a session's index after this long without a turn or
	// upload. Zero keeps indexes until EndSession.
	IdleTTL time.Duration
	Now     func() time.Time
}

func New(l *zap.Logger, cfg Config) *Assistant {
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New()
	}
	if cfg.Scope != ScopeGlobal {
		cfg.Scope = ScopeSession
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Assistant{
		l:            l,
		sessions:     cfg.Sessions,
		bookings:     cfg.Bookings,
		orchestrator: cfg.Orchestrator,
		extractor:    cfg.Extractor,
		newEngine:    cfg.NewEngine,
		scope:        cfg.Scope,
		idleTTL:      cfg.IdleTTL,
		now:          cfg.Now,
		locks:        newSessionLocks(),
		engines:      make(map[string]*engineEntry),
	}
}

// SubmitMessage runs one dialogue turn. Turns of the same session are
// serialized; an error means the session could not be loaded or saved.
func (a *Assistant) SubmitMessage(ctx context.Context, sessionID, text string) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySession
	}
	unlock := a.locks.lock(sessionID)
	defer unlock()

	state, err := a.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	var r dialogue.Retriever
	if e := a.engine(sessionID); e != nil {
		r = e
	}
	phase := state.Phase()
	lastBooking := state.LastBookingID
	reply := a.orchestrator.HandleTurn(ctx, text, state, r)

	if err := a.sessions.Save(ctx, sessionID, state); err != nil {
		if state.LastBookingID == lastBooking {
			return "", fmt.Errorf("save session: %w", err)
		}
		// The booking is stored. The saved state still holds the confirmed
		// draft, so drop it rather than let a retry book twice.
		if derr := a.sessions.Delete(ctx, sessionID); derr != nil {
			a.l.Error("Confirmed booking left in session state",
				zap.String("session_id", sessionID),
				zap.Int64("booking_id", state.LastBookingID),
				zap.Error(errors.Join(err, derr)),
			)
			return "", fmt.Errorf("save session after booking %d: %w", state.LastBookingID, err)
		}
		a.l.Warn("Session reset after failed save",
			zap.String("session_id", sessionID),
			zap.Int64("booking_id", state.LastBookingID),
			zap.Error(err),
		)
	}

	a.l.Debug("Turn handled",
		zap.String("session_id", sessionID),
		zap.Stringer("from", phase),
		zap.Stringer("to", state.Phase()),
	)
	return reply, nil
}

// SubmitDocument extracts, chunks and indexes an upload, replacing the
// previous document of the index scope. Booking fields found in the text are
// remembered on the session for prefill.
func (a *Assistant) SubmitDocument(ctx context.Context, sessionID, filename string, data []byte) (UploadResult, error) {
	if sessionID == "" {
		return UploadResult{}, ErrEmptySession
	}
	if !extract.Supported(filename) {
		return UploadResult{}, ErrUnsupportedDocument
	}
	text, err := a.extractor.Extract(filename, data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			return UploadResult{}, ErrUnsupportedDocument
		}
		return UploadResult{}, err
	}

	// The session lock keeps eviction from closing the engine mid-upload.
	unlock := a.locks.lock(sessionID)
	defer unlock()

	doc := domain.Document{ID: uuid.NewString(), Name: filename, Content: text}
	n, err := a.engineOrCreate(sessionID).Index(ctx, doc)
	if errors.Is(err, retrieval.ErrNoChunks) {
		return UploadResult{}, extract.ErrNoText
	}
	if err != nil {
		return UploadResult{}, fmt.Errorf("index document: %w", err)
	}

	fields := booking.ExtractFields(text)
	if err := a.rememberPrefill(ctx, sessionID, fields); err != nil {
		return UploadResult{}, err
	}

	a.l.Info("Document uploaded",
		zap.String("session_id", sessionID),
		zap.String("document_id", doc.ID),
		zap.String("filename", filename),
		zap.Int("chunks", n),
		zap.Int("prefilled_fields", len(fields)),
	)
	return UploadResult{ChunkCount: n, PrefilledFields: len(fields)}, nil
}

func (a *Assistant) rememberPrefill(ctx context.Context, sessionID string, fields booking.Draft) error {
	state, err := a.sessions.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	state.Prefill = fields
	if err := a.sessions.Save(ctx, sessionID, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ListBookings returns every confirmed booking, newest first.
func (a *Assistant) ListBookings(ctx context.Context) ([]booking.CompletedBooking, error) {
	return a.bookings.List(ctx)
}

// EndSession forgets the conversation and drops its document index.
func (a *Assistant) EndSession(ctx context.Context, sessionID string) error {
	unlock := a.locks.lock(sessionID)
	defer unlock()

	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if a.scope == ScopeGlobal {
		return nil
	}
	key := a.indexKey(sessionID)
	a.enginesMu.Lock()
	entry := a.engines[key]
	delete(a.engines, key)
	a.enginesMu.Unlock()
	if entry != nil {
		return entry.engine.Close(ctx)
	}
	return nil
}

// EvictIdle drops the indexes of sessions idle for longer than the
// configured TTL and returns how many were dropped. The shared index of the
// global scope is never evicted.
func (a *Assistant) EvictIdle(ctx context.Context) int {
	if a.idleTTL <= 0 || a.scope == ScopeGlobal {
		return 0
	}
	cutoff := a.now().Add(-a.idleTTL)

	a.enginesMu.Lock()
	var idle []string
	for _, entry := range a.engines {
		if entry.lastUsed.Before(cutoff) {
			idle = append(idle, entry.sessionID)
		}
	}
	a.enginesMu.Unlock()

	evicted := 0
	for _, sessionID := range idle {
		if a.evict(ctx, sessionID, cutoff) {
			evicted++
		}
	}
	return evicted
}

func (a *Assistant) evict(ctx context.Context, sessionID string, cutoff time.Time) bool {
	unlock := a.locks.lock(sessionID)
	defer unlock()

	key := a.indexKey(sessionID)
	a.enginesMu.Lock()
	entry, ok := a.engines[key]
	if !ok || !entry.lastUsed.Before(cutoff) {
		a.enginesMu.Unlock()
		return false
	}
	delete(a.engines, key)
	a.enginesMu.Unlock()

	if err := entry.engine.Close(ctx); err != nil {
		a.l.Warn("Failed to drop idle index", zap.String("session_id", sessionID), zap.Error(err))
	}
	a.l.Info("Idle session index evicted",
		zap.String("session_id", sessionID),
		zap.Time("last_used", entry.lastUsed),
	)
	return true
}

// RunJanitor calls EvictIdle every interval until ctx is done.
func (a *Assistant) RunJanitor(ctx context.Context, interval time.Duration) {
	if a.idleTTL <= 0 || a.scope == ScopeGlobal || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.EvictIdle(context.WithoutCancel(ctx))
		}
	}
}

// engine returns the session's index and marks it used.
func (a *Assistant) engine(sessionID string) *retrieval.Engine {
	a.enginesMu.Lock()
	defer a.enginesMu.Unlock()
	entry, ok := a.engines[a.indexKey(sessionID)]
	if !ok {
		return nil
	}
	entry.lastUsed = a.now()
	return entry.engine
}

func (a *Assistant) engineOrCreate(sessionID string) *retrieval.Engine {
	key := a.indexKey(sessionID)
	a.enginesMu.Lock()
	defer a.enginesMu.Unlock()
	entry, ok := a.engines[key]
	if !ok {
		entry = &engineEntry{engine: a.newEngine(key), sessionID: sessionID}
		a.engines[key] = entry
	}
	entry.lastUsed = a.now()
	return entry.engine
}

// indexKey maps a session to a short name that is safe for collection names.
func (a *Assistant) indexKey(sessionID string) string {
	if a.scope == ScopeGlobal {
		return globalIndex
	}
	sum := sha1.Sum([]byte(sessionID))
	return "s" + hex.EncodeToString(sum[:6])
}
