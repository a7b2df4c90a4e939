package telemetry

import "time"

// PushRequest 节点上报的遥测数据
type PushRequest struct {
	Name      *string           `json:"name"`
	Firmware  *string           `json:"firmware"`
	Role      *string           `json:"role"`
	Uptime    *int              `json:"uptime"`
	HeapFree  *int              `json:"heap_free"`
	PeerCount *int              `json:"peer_count"`
	State     map[string]string `json:"state"`

	// IPAddress is the transport source address, filled by the handler
	IPAddress *string `json:"-"`
}

// PushResult 上报结果
type PushResult struct {
	Status       string    `json:"status"`
	NodeID       string    `json:"node_id"`
	Timestamp    time.Time `json:"timestamp"`
	StateChanges int       `json:"state_changes"`
}
