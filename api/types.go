package api

// Wire types of the scheduler HTTP API. Status is "OK" or the error type
// name from the scheduler error taxonomy; errors never cross the process
// boundary as anything but status + msg.

const StatusOK = "OK"

type RpcReply struct {
	Status string `json:"status"`
	Msg    string `json:"msg,omitempty"`
}

// NodeInfoJson describes a registering node.
type NodeInfoJson struct {
	NodeId   uint32  `json:"node_id"`
	Kind     string  `json:"kind"` // "backend" | "frontend"
	Address  string  `json:"address"`
	Capacity float64 `json:"capacity,omitempty"` // backends only: max aggregate request rate
}

// InstanceConfigJson tells a backend to serve a share of a model session.
type InstanceConfigJson struct {
	ModelSessionId string  `json:"model_session_id"`
	RequestRate    float64 `json:"request_rate"`
}

type RegisterRequest = NodeInfoJson

type RegisterReply struct {
	Status            string                `json:"status"`
	Msg               string                `json:"msg,omitempty"`
	BeaconIntervalSec int                   `json:"beacon_interval_sec,omitempty"`
	EpochIntervalSec  int                   `json:"epoch_interval_sec,omitempty"`
	InstanceConfigs   []*InstanceConfigJson `json:"instance_configs,omitempty"`
}

type UnregisterRequest struct {
	NodeId uint32 `json:"node_id"`
	Kind   string `json:"kind"`
}

type LoadModelRequest struct {
	FrontendId   uint32  `json:"frontend_id"`
	ModelId      string  `json:"model_id"`
	Version      string  `json:"version"`
	TargetConfig string  `json:"target_config,omitempty"`
	RequestRate  float64 `json:"request_rate"`
}

type LoadModelReply struct {
	Status string          `json:"status"`
	Msg    string          `json:"msg,omitempty"`
	Route  *ModelRouteJson `json:"route,omitempty"`
}

// ModelRouteJson is the routing table entry a frontend dispatches with.
type ModelRouteJson struct {
	ModelSessionId string              `json:"model_session_id"`
	Backends       []*BackendRouteJson `json:"backends"`
}

type BackendRouteJson struct {
	NodeId     uint32  `json:"node_id"`
	Address    string  `json:"address"`
	Throughput float64 `json:"throughput"` // this backend's rate share, dispatch weight
}

type BackendStatsRequest struct {
	NodeId uint32 `json:"node_id"`
	// observed request rate per model session id since the last report
	ModelRates map[string]float64 `json:"model_rates"`
}

type KeepAliveRequest struct {
	NodeId uint32 `json:"node_id"`
	Kind   string `json:"kind"`
}

// UnassignedJson is the persisted form of one pending workload entry.
type UnassignedJson struct {
	ModelSessionId string  `json:"model_session_id"`
	RequestRate    float64 `json:"request_rate"`
}

type GetStatusResponse struct {
	Version    string            `json:"version"`
	Backends   []*BackendStatus  `json:"backends"`
	Frontends  []*FrontendStatus `json:"frontends"`
	Models     []*ModelStatus    `json:"models"`
	Unassigned []*UnassignedJson `json:"unassigned"`
}

type BackendStatus struct {
	NodeId          uint32                `json:"node_id"`
	Address         string                `json:"address"`
	Capacity        float64               `json:"capacity"`
	AssignedLoad    float64               `json:"assigned_load"`
	LastHeartbeatMs int64                 `json:"last_heartbeat_ms"`
	Instances       []*InstanceConfigJson `json:"instances"`
}

type FrontendStatus struct {
	NodeId          uint32   `json:"node_id"`
	Address         string   `json:"address"`
	Subscriptions   []string `json:"subscriptions"`
	LastHeartbeatMs int64    `json:"last_heartbeat_ms"`
}

type ModelStatus struct {
	ModelSessionId  string    `json:"model_session_id"`
	ServedState     string    `json:"served_state"` // unserved | partially_served | fully_served
	RequestedRate   float64   `json:"requested_rate"`
	TotalThroughput float64   `json:"total_throughput"`
	Subscribers     int       `json:"subscribers"`
	RateHistory     []float64 `json:"rate_history,omitempty"`
}
