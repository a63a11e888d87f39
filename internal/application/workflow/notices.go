package workflow

import "sync"

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a toast shown on the next render.
type Notice struct {
	Level Level
	Text  string
}

const maxNotices = 20

// Notices is a per-workspace toast queue. The oldest entries are dropped
// once it is full.
type Notices struct {
	mu    sync.Mutex
	queue []Notice
}

func NewNotices() *Notices { return &Notices{} }

func (n *Notices) Push(level Level, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(n.queue, Notice{Level: level, Text: text})
	if over := len(n.queue) - maxNotices; over > 0 {
		n.queue = append([]Notice(nil), n.queue[over:]...)
	}
}

func (n *Notices) Success(text string) { n.Push(LevelSuccess, text) }
func (n *Notices) Info(text string)    { n.Push(LevelInfo, text) }
func (n *Notices) Warning(text string) { n.Push(LevelWarning, text) }
func (n *Notices) Error(text string)   { n.Push(LevelError, text) }

// Drain returns and clears the queue.
func (n *Notices) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.queue
	n.queue = nil
	return out
}
