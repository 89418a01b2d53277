package listview

import "sync"

// Level classifies a user-visible notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notifier is the UI collaborator that surfaces outcomes to the user. Toasts
// are transient notices; alerts are modal and carry a title.
type Notifier interface {
	Toast(level Level, message string)
	Alert(level Level, title, body string)
}

// Notice is one recorded notification. Title is empty for toasts.
type Notice struct {
	Level Level
	Title string
	Body  string
	Modal bool
}

// Recorder is a Notifier that keeps every notice in order.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Toast(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Body: message})
}

func (r *Recorder) Alert(level Level, title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Title: title, Body: body, Modal: true})
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Discard drops every notice.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Toast(Level, string)         {}
func (discard) Alert(Level, string, string) {}
