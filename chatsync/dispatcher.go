package chatsync

// ConnectionState describes the engine's link to the server.
type ConnectionState int

const (
	// StateDisconnected means no connection and no retry pending.
	StateDisconnected ConnectionState = iota
	// StateConnected means the socket is open.
	StateConnected
	// StateReconnecting means a retry is scheduled after a drop.
	StateReconnecting
	// StateClosed means Close was called.
	StateClosed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Dispatcher routes engine notifications to a renderer adapter. The engine
// owns protocol and state; whatever subscribes here owns pixels.
type Dispatcher struct {
	onRoomsChanged    func(rooms []string)
	onRoomChanged     func(room string)
	onHistoryReplaced func(room string, history []Event)
	onEventAppended   func(ev Event)
	onCleared         func(room string)
	onStateChanged    func(state ConnectionState)
	onError           func(err error)
}

func (d *Dispatcher) SetOnRoomsChanged(fn func([]string))            { d.onRoomsChanged = fn }
func (d *Dispatcher) SetOnRoomChanged(fn func(string))               { d.onRoomChanged = fn }
func (d *Dispatcher) SetOnHistoryReplaced(fn func(string, []Event))  { d.onHistoryReplaced = fn }
func (d *Dispatcher) SetOnEventAppended(fn func(Event))              { d.onEventAppended = fn }
func (d *Dispatcher) SetOnCleared(fn func(string))                   { d.onCleared = fn }
func (d *Dispatcher) SetOnStateChanged(fn func(ConnectionState))     { d.onStateChanged = fn }
func (d *Dispatcher) SetOnError(fn func(error))                      { d.onError = fn }

func (d *Dispatcher) fireRoomsChanged(rooms []string) {
	if d.onRoomsChanged != nil {
		d.onRoomsChanged(rooms)
	}
}

func (d *Dispatcher) fireRoomChanged(room string) {
	if d.onRoomChanged != nil {
		d.onRoomChanged(room)
	}
}

func (d *Dispatcher) fireHistoryReplaced(room string, history []Event) {
	if d.onHistoryReplaced != nil {
		d.onHistoryReplaced(room, history)
	}
}

func (d *Dispatcher) fireEventAppended(ev Event) {
	if d.onEventAppended != nil {
		d.onEventAppended(ev)
	}
}

func (d *Dispatcher) fireCleared(room string) {
	if d.onCleared != nil {
		d.onCleared(room)
	}
}

func (d *Dispatcher) fireStateChanged(state ConnectionState) {
	if d.onStateChanged != nil {
		d.onStateChanged(state)
	}
}

func (d *Dispatcher) fireError(err error) {
	if d.onError != nil && err != nil {
		d.onError(err)
	}
}
