package speech

import (
	"sync"
	"time"
)

// ActiveRequest 是单个在途请求的诊断快照。
type ActiveRequest struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	StartTime time.Time `json:"start_time"`
	Status    string    `json:"status"`
}

// ActiveRegistry 跟踪在途请求，仅用于诊断。记录在请求入口创建，
// 在所有出口路径（包括错误路径）删除，不会比请求活得更久。
type ActiveRegistry struct {
	mu       sync.Mutex
	requests map[string]*ActiveRequest
}

// NewActiveRegistry 创建空的在途请求表。
func NewActiveRegistry() *ActiveRegistry {
	return &ActiveRegistry{requests: make(map[string]*ActiveRequest)}
}

// Begin 登记一个新请求，返回的函数在请求结束时调用以移除记录。
func (r *ActiveRegistry) Begin(id, op string) func() {
	r.mu.Lock()
	r.requests[id] = &ActiveRequest{
		ID:        id,
		Op:        op,
		StartTime: time.Now().UTC(),
		Status:    "running",
	}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.requests, id)
		r.mu.Unlock()
	}
}

// SetStatus 更新请求状态描述（如 provider_call、cache_write）。
func (r *ActiveRegistry) SetStatus(id, status string) {
	r.mu.Lock()
	if req, ok := r.requests[id]; ok {
		req.Status = status
	}
	r.mu.Unlock()
}

// Snapshot 返回当前在途请求的副本列表。
func (r *ActiveRegistry) Snapshot() []ActiveRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]ActiveRequest, 0, len(r.requests))
	for _, req := range r.requests {
		result = append(result, *req)
	}
	return result
}
