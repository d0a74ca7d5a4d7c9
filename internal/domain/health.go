package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// EngineMetrics is returned by GET /v1/metrics/engine.
type EngineMetrics struct {
	OrdersEnriched     int64   `json:"ordersEnriched"`
	OrdersUnenriched   int64   `json:"ordersUnenriched"`
	EnrichmentRate     float64 `json:"enrichmentRate"`
	OrdersAdded        int64   `json:"ordersAdded"`
	OrdersUpdated      int64   `json:"ordersUpdated"`
	OrdersUnchanged    int64   `json:"ordersUnchanged"`
	UnclassifiedCycles int64   `json:"unclassifiedCycles"`
	SkippedRecords     int64   `json:"skippedRecords"`
	CacheHitRate       float64 `json:"cacheHitRate"`
	Period             string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps paginated list results.
type ListResponse[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
