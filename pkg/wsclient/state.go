package wsclient

// State 客户端连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	// 等待下一次重连
	StateBackoff
	// 重试次数用尽，需要调用方重新 Connect
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}
