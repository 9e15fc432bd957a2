package data

import (
	"strings"

	"github.com/sugartom/nexus/internal/kerror"
)

// ModelSession identifies a specific model configuration. The canonical id
// is "modelId:version" or "modelId:version:targetConfig".
type ModelSession struct {
	ModelId      string
	Version      string
	TargetConfig string // optional
}

func (ms ModelSession) SessionId() ModelSessionId {
	if ms.TargetConfig == "" {
		return ModelSessionId(ms.ModelId + ":" + ms.Version)
	}
	return ModelSessionId(ms.ModelId + ":" + ms.Version + ":" + ms.TargetConfig)
}

// ParseModelSessionId panics with InvalidModelSession when the id is
// malformed. Callers at the RPC boundary rely on the recovery middleware to
// turn that into a status reply.
func ParseModelSessionId(id string) ModelSession {
	parts := strings.Split(id, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		panic(kerror.Create("InvalidModelSession", "malformed model session id").
			WithErrorCode(kerror.EC_INVALID_PARAMETER).
			With("sessionId", id))
	}
	ms := ModelSession{ModelId: parts[0], Version: parts[1]}
	if len(parts) == 3 {
		ms.TargetConfig = parts[2]
	}
	return ms
}
