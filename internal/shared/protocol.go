package shared

import "encoding/json"

const (
	ActionReplace = "replace"
	ActionAppend  = "append"
)

// UpdateRequest is the JSON body of POST /api/ips.
type UpdateRequest struct {
	IPs    []string `json:"ips"`
	Action string   `json:"action,omitempty"` // "replace" (default) | "append"
	Key    string   `json:"key,omitempty"`
}

// Envelope wraps every JSON response. Data is left raw so callers can
// decode it into the type of the endpoint they hit.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type ListData struct {
	Key         string   `json:"key"`
	Count       int      `json:"count"`
	IPs         []string `json:"ips"`
	LastUpdated string   `json:"lastUpdated"`
}

type UpdateData struct {
	Key        string `json:"key"`
	Count      int    `json:"count"`
	Action     string `json:"action"`
	Timestamp  string `json:"timestamp"`
	Added      *int   `json:"added,omitempty"`
	Duplicates *int   `json:"duplicates,omitempty"`
}

type StatsData struct {
	TotalIPs      int      `json:"totalIPs"`
	ContentSize   int      `json:"contentSize"`
	ContentSizeMB float64  `json:"contentSizeMB"`
	LastUpdated   string   `json:"lastUpdated"`
	SampleIPs     []string `json:"sampleIPs"`
}

// HealthResponse is the body of GET /api/health. It is not wrapped in an
// Envelope's data field.
type HealthResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"` // "healthy" | "unhealthy"
	Timestamp string `json:"timestamp"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TimeLayout formats the timestamps in responses (UTC, millisecond precision).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"
