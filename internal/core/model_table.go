package core

import (
	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/data"
)

const (
	ServedStateUnserved  = "unserved"
	ServedStatePartially = "partially_served"
	ServedStateFully     = "fully_served"
)

// ModelInfo is one entry of the model table: which backends serve this
// session and at what rate, which frontends subscribed to it, and the
// recent observed request rates.
type ModelInfo struct {
	SessionId data.ModelSessionId

	// sum of rates declared by frontends via LoadModel (and the static
	// workload file); the floor for demand when no history exists yet
	RequestedRate float64

	// per backend rate share; keys must always be registered backends
	BackendThroughputs map[data.NodeId]float64

	Subscribers map[data.NodeId]common.Unit

	// bounded observed-rate window, oldest first
	RateHistory []float64
	historyLen  int
}

func NewModelInfo(sessionId data.ModelSessionId, requestedRate float64, historyLen int) *ModelInfo {
	return &ModelInfo{
		SessionId:          sessionId,
		RequestedRate:      requestedRate,
		BackendThroughputs: make(map[data.NodeId]float64),
		Subscribers:        make(map[data.NodeId]common.Unit),
		historyLen:         historyLen,
	}
}

// TotalThroughput is the supply currently allocated to this session.
func (mi *ModelInfo) TotalThroughput() float64 {
	var total float64
	for _, rate := range mi.BackendThroughputs {
		total += rate
	}
	return total
}

// AppendRate records one aggregated rate observation, dropping the oldest
// when the window is full.
func (mi *ModelInfo) AppendRate(rate float64) {
	mi.RateHistory = append(mi.RateHistory, rate)
	if len(mi.RateHistory) > mi.historyLen {
		mi.RateHistory = mi.RateHistory[len(mi.RateHistory)-mi.historyLen:]
	}
}

func (mi *ModelInfo) ServedStateFor(demand float64) string {
	supply := mi.TotalThroughput()
	if supply <= rateEpsilon {
		return ServedStateUnserved
	}
	if supply+rateEpsilon < demand {
		return ServedStatePartially
	}
	return ServedStateFully
}

// IsGarbage reports whether nothing references this session anymore.
func (mi *ModelInfo) IsGarbage() bool {
	return len(mi.Subscribers) == 0 && len(mi.BackendThroughputs) == 0
}

/********************************* table ops ************************************/

func (ss *SchedulerState) ensureModelInfo(sessionId data.ModelSessionId, requestedRate float64) *ModelInfo {
	info, ok := ss.ModelTable[sessionId]
	if !ok {
		info = NewModelInfo(sessionId, requestedRate, ss.Config.HistoryLen)
		ss.ModelTable[sessionId] = info
	} else if requestedRate > info.RequestedRate {
		info.RequestedRate = requestedRate
	}
	return info
}

// maybeDeleteModelInfo drops a session that lost its last reference, along
// with its queued unassigned entries.
func (ss *SchedulerState) maybeDeleteModelInfo(sessionId data.ModelSessionId) bool {
	info, ok := ss.ModelTable[sessionId]
	if !ok || !info.IsGarbage() {
		return false
	}
	delete(ss.ModelTable, sessionId)
	ss.removeUnassignedFor(sessionId)
	return true
}

func (ss *SchedulerState) removeUnassignedFor(sessionId data.ModelSessionId) {
	kept := ss.UnassignedWorkloads[:0]
	for _, wl := range ss.UnassignedWorkloads {
		if wl.SessionId != sessionId {
			kept = append(kept, wl)
		}
	}
	ss.UnassignedWorkloads = kept
}

// pendingUnassignedRate sums the queued rate for one session. The epoch
// grow step counts this as supply-in-flight so the same gap is not enqueued
// twice.
func (ss *SchedulerState) pendingUnassignedRate(sessionId data.ModelSessionId) float64 {
	var total float64
	for _, wl := range ss.UnassignedWorkloads {
		if wl.SessionId == sessionId {
			total += wl.RequestRate
		}
	}
	return total
}
