package wire

// Channel is one of the fixed, protocol-defined logical streams (spec.md §3).
type Channel string

const (
	ChannelShell     Channel = "shell"
	ChannelControl   Channel = "control"
	ChannelIOPub     Channel = "iopub"
	ChannelStdin     Channel = "stdin"
	ChannelHeartbeat Channel = "heartbeat"
)

// AllChannels enumerates every logical channel, in the poll order the event
// loop uses (spec.md §4.4): control first, then shell, then stdin, then
// heartbeat.
var AllChannels = []Channel{ChannelControl, ChannelShell, ChannelStdin, ChannelHeartbeat, ChannelIOPub}

// channelByMsgType is the msg_type → channel topology table (spec.md §4.2).
var channelByMsgType = map[string]Channel{
	"execute_request":    ChannelShell,
	"execute_reply":      ChannelShell,
	"kernel_info_request": ChannelShell,
	"kernel_info_reply":  ChannelShell,
	"tool_request":       ChannelShell,
	"tool_reply":         ChannelShell,

	"shutdown_request":  ChannelControl,
	"shutdown_reply":    ChannelControl,
	"interrupt_request": ChannelControl,
	"interrupt_reply":   ChannelControl,
	"debug_request":     ChannelControl,
	"debug_reply":       ChannelControl,

	"input_request": ChannelStdin,
	"input_reply":   ChannelStdin,

	"status":        ChannelIOPub,
	"stream":        ChannelIOPub,
	"execute_input": ChannelIOPub,
	"execute_result": ChannelIOPub,
	"error":         ChannelIOPub,
	"debug_event":   ChannelIOPub,
}

// ChannelFor returns the channel a given msg_type travels on, and whether
// the type is known to the topology.
func ChannelFor(msgType string) (Channel, bool) {
	c, ok := channelByMsgType[msgType]
	return c, ok
}
