package analytics

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"occupancy-predictor/models"
)

const (
	defaultQueueSize = 10000
	saveTimeout      = 2 * time.Second
)

// SummaryStore persists the latest RoomSummary per room.
type SummaryStore interface {
	SaveSummary(ctx context.Context, summary models.RoomSummary) error
	GetSummary(ctx context.Context, roomID string) (*models.RoomSummary, error)
}

type DriftCallback func(roomID string, zScore float64)

// Observation is one served prediction together with its raw input.
type Observation struct {
	RoomID      string
	Reading     models.SensorReading
	Prediction  int
	Probability float64
}

type TrackerConfig struct {
	// Workers is clamped to [4, 16]; zero means 2×NumCPU.
	Workers        int
	WindowSize     int
	DriftThreshold float64
	QueueSize      int
}

type roomState struct {
	mu        sync.Mutex
	occupancy *RollingWindow
	co2       *DriftDetector
}

// Tracker aggregates predictions per room off the request path.
type Tracker struct {
	store   SummaryStore
	cfg     TrackerConfig
	onDrift DriftCallback

	mu    sync.RWMutex
	rooms map[string]*roomState

	// Each room hashes to one shard, and each shard has one worker, so a
	// room's observations are applied and saved in arrival order.
	sendMu sync.RWMutex
	closed bool
	shards []chan Observation
	wg     sync.WaitGroup
}

func NewTracker(store SummaryStore, cfg TrackerConfig, onDrift DriftCallback) *Tracker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	t := &Tracker{
		store:   store,
		cfg:     cfg,
		onDrift: onDrift,
		rooms:   make(map[string]*roomState),
	}

	numWorkers := cfg.Workers
	if numWorkers == 0 {
		numWorkers = runtime.NumCPU() * 2
	}
	if numWorkers < 4 {
		numWorkers = 4
	}
	if numWorkers > 16 {
		numWorkers = 16
	}
	slog.Info("starting analytics workers", "workers", numWorkers)

	shardSize := cfg.QueueSize / numWorkers
	if shardSize < 1 {
		shardSize = 1
	}
	t.shards = make([]chan Observation, numWorkers)
	t.wg.Add(numWorkers)
	for i := range t.shards {
		t.shards[i] = make(chan Observation, shardSize)
		go t.processObservations(t.shards[i])
	}
	return t
}

func (t *Tracker) shardFor(roomID string) chan Observation {
	return t.shards[xxhash.Sum64String(roomID)%uint64(len(t.shards))]
}

// Record queues obs on its room's shard without blocking. A full shard
// drops it.
func (t *Tracker) Record(obs Observation) {
	t.sendMu.RLock()
	defer t.sendMu.RUnlock()
	if t.closed {
		return
	}

	select {
	case t.shardFor(obs.RoomID) <- obs:
	default:
		slog.Warn("analytics queue is full, dropping observation", "room_id", obs.RoomID)
	}
}

// Close stops accepting observations and waits for queued ones to finish.
func (t *Tracker) Close() {
	t.sendMu.Lock()
	if !t.closed {
		t.closed = true
		for _, shard := range t.shards {
			close(shard)
		}
	}
	t.sendMu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) processObservations(shard <-chan Observation) {
	defer t.wg.Done()
	for obs := range shard {
		t.processObservation(obs)
	}
}

func (t *Tracker) room(roomID string) *roomState {
	t.mu.RLock()
	rs, ok := t.rooms[roomID]
	t.mu.RUnlock()
	if ok {
		return rs
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rs, ok = t.rooms[roomID]; ok {
		return rs
	}
	rs = &roomState{
		occupancy: NewRollingWindow(t.cfg.WindowSize),
		co2:       NewDriftDetector(t.cfg.WindowSize, t.cfg.DriftThreshold),
	}
	t.rooms[roomID] = rs
	return rs
}

func (t *Tracker) processObservation(obs Observation) {
	rs := t.room(obs.RoomID)

	rs.mu.Lock()
	rs.occupancy.Add(float64(obs.Prediction))
	drift, zScore := rs.co2.Detect(obs.Reading.CO2)
	summary := models.RoomSummary{
		RoomID:          obs.RoomID,
		LastPrediction:  obs.Prediction,
		LastProbability: obs.Probability,
		OccupancyRate:   rs.occupancy.Average(),
		Samples:         rs.occupancy.Len(),
		CO2ZScore:       zScore,
		InputDrift:      drift,
		ReadingTime:     obs.Reading.Timestamp,
		UpdatedAt:       time.Now().UTC(),
	}
	rs.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := t.store.SaveSummary(ctx, summary); err != nil {
		slog.Error("failed to save room summary", "room_id", obs.RoomID, "err", err)
	}

	if drift {
		slog.Warn("input drift detected",
			"room_id", obs.RoomID, "co2", obs.Reading.CO2, "z_score", zScore)
		if t.onDrift != nil {
			t.onDrift(obs.RoomID, zScore)
		}
	}
}
