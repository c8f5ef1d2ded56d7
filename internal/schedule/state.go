package schedule

import (
	"errors"
	"strings"

	"timetable-backend/internal/model"
)

var (
	// ErrIdentityUnset is returned when an operation needs an identity and
	// none is selected. Hosts redirect to identity selection on it.
	ErrIdentityUnset = errors.New("schedule identity is not set")
	// ErrBusy is returned by an extension while another one is in flight
	// or the initial load has not settled.
	ErrBusy = errors.New("schedule window is busy")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("schedule controller is closed")
)

// State is the synchronization phase of a Controller.
type State int

const (
	Idle State = iota
	InitialLoading
	Ready
	RefreshingInBackground
	ExtendingForward
	ExtendingBackward
)

var stateNames = [...]string{
	Idle:                   "idle",
	InitialLoading:         "initial_loading",
	Ready:                  "ready",
	RefreshingInBackground: "refreshing",
	ExtendingForward:       "extending_forward",
	ExtendingBackward:      "extending_backward",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Banner texts.
const (
	msgRefreshFailed = "Не удалось обновить расписание, показаны сохранённые данные"
	msgLoadFailed    = "Не удалось загрузить расписание"
	msgOfflineHint   = "Доступны офлайн: "
)

// Notification is the "could not refresh" banner.
type Notification struct {
	Message           string   `json:"message"`
	Cached            bool     `json:"cached"`
	OfflineIdentities []string `json:"offlineIdentities,omitempty"`
}

func newNotification(cached bool, offline []string) *Notification {
	if cached {
		return &Notification{Message: msgRefreshFailed, Cached: true}
	}
	n := &Notification{Message: msgLoadFailed}
	if len(offline) > 0 {
		n.OfflineIdentities = offline
		n.Message += ". " + msgOfflineHint + strings.Join(offline, ", ")
	}
	return n
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Identity     string               `json:"identity"`
	Generation   uint64               `json:"generation"`
	State        State                `json:"state"`
	Records      []model.LessonRecord `json:"records"`
	Filter       string               `json:"filter,omitempty"`
	WindowStart  string               `json:"windowStart,omitempty"`
	WindowEnd    string               `json:"windowEnd,omitempty"`
	Notification *Notification        `json:"notification,omitempty"`
	ScrollTarget string               `json:"scrollTarget,omitempty"`
	ScrollOffset int                  `json:"scrollOffset,omitempty"`
}

// NotificationVisible reports whether the banner is shown.
func (s Snapshot) NotificationVisible() bool {
	return s.Notification != nil
}

// Loading reports whether nothing has been rendered yet.
func (s Snapshot) Loading() bool {
	return s.State == InitialLoading
}
