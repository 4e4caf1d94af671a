package speech

import (
	"sync"

	"github.com/voice-hub/voice-hub/internal/provider"
)

// History 为每位用户保留最近的若干轮对话，超出上限从最旧端裁剪。
type History struct {
	mu    sync.Mutex
	depth int
	turns map[string][]provider.Turn
}

// NewHistory 创建每用户最多保留 depth 轮的历史存储。
func NewHistory(depth int) *History {
	return &History{
		depth: depth,
		turns: make(map[string][]provider.Turn),
	}
}

// Recent 返回某用户当前保留的对话轮次副本，按时间先后排列。
func (h *History) Recent(userID string) []provider.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.turns[userID]
	if len(turns) == 0 {
		return nil
	}
	return append([]provider.Turn(nil), turns...)
}

// Append 记录一轮新的 (prompt, response)，随后裁剪到上限。
func (h *History) Append(userID, prompt, response string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := append(h.turns[userID], provider.Turn{Prompt: prompt, Response: response})
	if len(turns) > h.depth {
		turns = turns[len(turns)-h.depth:]
	}
	h.turns[userID] = turns
}

// Len 返回某用户当前保留的轮数。
func (h *History) Len(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns[userID])
}
