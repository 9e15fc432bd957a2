package data

import "strconv"

// NodeId identifies one backend or frontend in the cluster.
type NodeId uint32

func (id NodeId) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

type NodeKind string

const (
	NK_Backend  NodeKind = "backend"
	NK_Frontend NodeKind = "frontend"
)

// ModelSessionId is the canonical string key of a model session, see
// ModelSession.SessionId().
type ModelSessionId string
