// Package doses coordina el registro optimista de tomas sobre la lista
// cacheada del usuario.
package doses

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/platform/querycache"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// State del ciclo optimista por usuario.
type State string

const (
	StateClean     State = "clean"
	StatePending   State = "pending"
	StateCommitted State = "committed"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var (
	doseMarks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dose_marks_total",
			Help: "Dose marks by outcome.",
		},
		[]string{"outcome"},
	)
	doseRollbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dose_mark_rollbacks_total",
			Help: "Optimistic dose marks reverted after a failed write.",
		},
	)
)

func init() {
	prometheus.MustRegister(doseMarks, doseRollbacks)
}

// Result es lo que ve quien llamó a MarkTaken.
type Result struct {
	Status Status
	// Log es el registro persistido en éxito, o el provisional en error.
	Log medications.DoseLog
	// Medications es la lista autoritativa tras el éxito (nil si nunca hubo cache).
	Medications []medications.MedicationWithLogs
}

type Coordinator struct {
	store medications.Store
	cache *medications.Cache
	locks *querycache.KeyedMutex
	log   zerolog.Logger

	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	states map[string]State
}

func NewCoordinator(store medications.Store, cache *medications.Cache, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		cache:  cache,
		locks:  querycache.NewKeyedMutex(),
		log:    log.With().Str("component", "doses").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
		states: make(map[string]State),
	}
}

func (c *Coordinator) State(userID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.states[userID]; ok {
		return s
	}
	return StateClean
}

// Status es pending mientras haya una marca en vuelo para el usuario.
func (c *Coordinator) Status(userID string) Status {
	if c.State(userID) == StatePending {
		return StatusPending
	}
	return StatusIdle
}

// MarkTaken registra una toma. La lista cacheada refleja la toma provisional
// antes de que el backend responda; si la escritura falla se restaura el
// snapshot y se devuelve el error.
func (c *Coordinator) MarkTaken(ctx context.Context, userID string, in medications.NewDoseLog) (Result, error) {
	userID = strings.TrimSpace(userID)
	in.MedicationID = strings.TrimSpace(in.MedicationID)
	if userID == "" {
		return Result{Status: StatusError}, medications.ErrUnauthenticated
	}
	if in.MedicationID == "" {
		return Result{Status: StatusError}, &medications.ValidationError{Field: "medication_id", Reason: "required"}
	}

	unlock, err := c.locks.Lock(ctx, userID)
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("mark dose taken: %w", err)
	}
	defer unlock()

	c.setState(userID, StatePending)
	defer c.clearState(userID)

	now := c.now()
	if in.TakenAt == nil {
		in.TakenAt = &now
	}

	provisional := medications.DoseLog{
		ID:           medications.ProvisionalIDPrefix + c.newID(),
		MedicationID: in.MedicationID,
		UserID:       userID,
		TakenAt:      medications.FormatTakenAt(*in.TakenAt),
		Notes:        in.Notes,
		PhotoURL:     in.PhotoURL,
		CreatedAt:    now,
	}

	// 1) snapshot + parche optimista
	snapshot, snapVersion, cached := c.cache.Get(userID)
	var (
		patched      []medications.MedicationWithLogs
		patchVersion uint64
		isPatched    bool
	)
	if cached {
		if next, ok := withLog(snapshot, provisional); ok {
			patchVersion, isPatched = c.cache.CompareAndSet(userID, snapVersion, next)
			if isPatched {
				patched = next
			}
		}
	}

	// 2) escritura
	persisted, err := c.store.InsertDoseLog(ctx, userID, in)
	if err != nil {
		if isPatched {
			c.rollback(userID, patchVersion, snapshot)
		}
		doseMarks.WithLabelValues(string(StatusError)).Inc()
		c.log.Info().Err(err).Str("user_id", userID).Str("medication_id", in.MedicationID).Msg("dose mark failed")
		return Result{Status: StatusError, Log: provisional}, fmt.Errorf("mark dose taken: %w", err)
	}

	// 3) commit: la lista autoritativa reemplaza al parche
	c.setState(userID, StateCommitted)
	c.cache.Invalidate(userID)

	meds, ferr := c.cache.Refetch(ctx, userID)
	if ferr != nil {
		c.log.Warn().Err(ferr).Str("user_id", userID).Msg("refetch after dose mark failed")
		meds = reconcile(patched, provisional.ID, persisted)
	}

	doseMarks.WithLabelValues(string(StatusSuccess)).Inc()
	return Result{Status: StatusSuccess, Log: persisted, Medications: meds}, nil
}

// rollback restaura el snapshot solo si nadie publicó después del parche.
func (c *Coordinator) rollback(userID string, patchVersion uint64, snapshot []medications.MedicationWithLogs) {
	doseRollbacks.Inc()
	if _, ok := c.cache.CompareAndSet(userID, patchVersion, snapshot); ok {
		c.log.Warn().Str("user_id", userID).Msg("optimistic dose mark rolled back")
		return
	}
	c.cache.Invalidate(userID)
	c.log.Warn().Str("user_id", userID).Msg("cache moved during dose mark, invalidated instead of restoring")
}

func (c *Coordinator) setState(userID string, s State) {
	c.mu.Lock()
	c.states[userID] = s
	c.mu.Unlock()
}

func (c *Coordinator) clearState(userID string) {
	c.mu.Lock()
	delete(c.states, userID)
	c.mu.Unlock()
}

// withLog arma una lista nueva donde solo la medicación destino se copia con
// el log agregado. Las demás se comparten con la lista original.
func withLog(list []medications.MedicationWithLogs, l medications.DoseLog) ([]medications.MedicationWithLogs, bool) {
	idx := -1
	for i, m := range list {
		if m.ID == l.MedicationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	out := make([]medications.MedicationWithLogs, len(list))
	copy(out, list)

	target := out[idx]
	logs := make([]medications.DoseLog, len(target.Logs), len(target.Logs)+1)
	copy(logs, target.Logs)
	target.Logs = append(logs, l)
	out[idx] = target

	return out, true
}

// reconcile reemplaza el log provisional por el persistido.
func reconcile(list []medications.MedicationWithLogs, provisionalID string, persisted medications.DoseLog) []medications.MedicationWithLogs {
	if list == nil {
		return nil
	}

	out := make([]medications.MedicationWithLogs, len(list))
	copy(out, list)
	for i, m := range out {
		for j, l := range m.Logs {
			if l.ID != provisionalID {
				continue
			}
			logs := make([]medications.DoseLog, len(m.Logs))
			copy(logs, m.Logs)
			logs[j] = persisted
			m.Logs = logs
			out[i] = m
			return out
		}
	}
	return out
}
