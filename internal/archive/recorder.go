package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dice-poker-backend/internal/engine"
)

const saveTimeout = 5 * time.Second

type entry struct {
	over engine.GameOver
	at   time.Time
}

// Recorder queues finished rounds and writes them from a single worker.
// Record never blocks the caller; a full queue drops the round.
type Recorder struct {
	store Store
	queue chan entry
	clock clockwork.Clock
	log   *zap.Logger
}

func NewRecorder(store Store, size int, clock clockwork.Clock, log *zap.Logger) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store: store,
		queue: make(chan entry, size),
		clock: clock,
		log:   log,
	}
}

func (r *Recorder) Record(over engine.GameOver) {
	select {
	case r.queue <- entry{over: over, at: r.clock.Now()}:
	default:
		r.log.Warn("result queue full, dropping round", zap.String("room_id", over.RoomID))
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-r.queue:
			r.save(ctx, e)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	for {
		select {
		case e := <-r.queue:
			r.save(ctx, e)
		default:
			return
		}
	}
}

func (r *Recorder) save(ctx context.Context, e entry) {
	row, err := toRow(e)
	if err == nil {
		sctx, cancel := context.WithTimeout(ctx, saveTimeout)
		err = r.store.Save(sctx, row)
		cancel()
	}
	if err != nil {
		r.log.Error("save round", zap.String("room_id", e.over.RoomID), zap.Error(err))
		return
	}
	r.log.Debug("round saved", zap.String("room_id", e.over.RoomID), zap.Uint("id", row.ID))
}

func toRow(e entry) (*GameResult, error) {
	results, err := json.Marshal(e.over.Results)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return &GameResult{
		RoomID:     e.over.RoomID,
		WinnerName: e.over.WinnerName,
		Players:    len(e.over.Results),
		Results:    results,
		FinishedAt: e.at,
	}, nil
}

// Nop discards rounds. It is used when no database is configured.
type Nop struct{}

func (Nop) Record(engine.GameOver) {}
