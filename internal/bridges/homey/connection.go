package homey

import "time"

// DefaultReconnectInterval is the delay between a lost connection and the
// next attempt. The timer is single-shot and re-armed after every failure.
const DefaultReconnectInterval = 2000 * time.Millisecond

// maxReconnectTries is how many automatic attempts are made before the
// adapter gives up and asks the user.
const maxReconnectTries = 3

// ConnectionState is the adapter's view of the hub connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// connState is the whole reconnect state. It is only changed by transition.
type connState struct {
	State          ConnectionState
	Tries          int
	UserDisconnect bool
	TimerArmed     bool
}

type connEvent int

const (
	evConnect connEvent = iota
	evDisconnect
	evSocketOpened
	evConnectedAck
	evSocketClosed
	evSocketError
	evTimerFired
)

func (e connEvent) String() string {
	switch e {
	case evConnect:
		return "connect"
	case evDisconnect:
		return "disconnect"
	case evSocketOpened:
		return "socket_opened"
	case evConnectedAck:
		return "connected_ack"
	case evSocketClosed:
		return "socket_closed"
	case evSocketError:
		return "socket_error"
	case evTimerFired:
		return "timer_fired"
	default:
		return "unknown"
	}
}

// effect is work the worker performs after a transition, in order.
type effect int

const (
	effOpen effect = iota
	effClose
	effArmTimer
	effStopTimer
	effNotifyExhausted
)

// transition applies ev to s. It has no side effects.
func transition(s connState, ev connEvent) (connState, []effect) {
	var effects []effect

	switch ev {
	case evConnect:
		if s.State == StateConnecting || s.State == StateConnected {
			return s, nil
		}
		s.UserDisconnect = false
		s.Tries = 0
		s, effects = stopTimer(s, effects)
		s.State = StateConnecting
		effects = append(effects, effOpen)

	case evDisconnect:
		s, effects = userDisconnect(s, effects)

	case evSocketOpened:
		// The hub's "connected" message completes the handshake.
		if s.UserDisconnect || s.State == StateDisconnected {
			effects = append(effects, effClose)
		}

	case evConnectedAck:
		if s.State == StateDisconnected {
			return s, nil
		}
		s.State = StateConnected
		s.Tries = 0
		s, effects = stopTimer(s, effects)

	case evSocketClosed, evSocketError:
		if s.UserDisconnect {
			s.State = StateDisconnected
			return s, nil
		}
		effects = append(effects, effClose)
		s.State = StateDisconnected
		if !s.TimerArmed {
			s.TimerArmed = true
			effects = append(effects, effArmTimer)
		}

	case evTimerFired:
		s.TimerArmed = false
		if s.UserDisconnect || s.State != StateDisconnected {
			return s, nil
		}
		if s.Tries >= maxReconnectTries {
			effects = append(effects, effNotifyExhausted)
			s, effects = userDisconnect(s, effects)
			return s, effects
		}
		s.State = StateConnecting
		s.Tries++
		effects = append(effects, effOpen)
	}

	return s, effects
}

func userDisconnect(s connState, effects []effect) (connState, []effect) {
	s.UserDisconnect = true
	s, effects = stopTimer(s, effects)
	effects = append(effects, effClose)
	s.State = StateDisconnected
	s.Tries = 0
	return s, effects
}

func stopTimer(s connState, effects []effect) (connState, []effect) {
	if s.TimerArmed {
		s.TimerArmed = false
		effects = append(effects, effStopTimer)
	}
	return s, effects
}
