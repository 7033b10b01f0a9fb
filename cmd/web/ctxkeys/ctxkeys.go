package ctxkeys

type Key int

const (
	DeviceID Key = iota // string: caller's X-Device-ID
)
