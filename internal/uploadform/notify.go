package uploadform

import "sync"

// NoticeLevel distinguishes acknowledgements from failures
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a blocking alert shown to the user
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notifier delivers alerts to whatever surface hosts the form
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

func (fn NotifierFunc) Notify(n Notice) { fn(n) }

// DiscardNotifier drops every notice
type DiscardNotifier struct{}

func (DiscardNotifier) Notify(Notice) {}

// NoticeRecorder buffers notices until they are drained, e.g. into the next rendered page.
type NoticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *NoticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Drain returns the buffered notices and clears the buffer
func (r *NoticeRecorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	notices := r.notices
	r.notices = nil
	return notices
}

// Len returns the number of buffered notices
func (r *NoticeRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}
