package kernel

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/weftlang/weft/internal/registry"
	"github.com/weftlang/weft/internal/wire"
)

var errNoRegistry = errors.New("kernel: no tool registry configured")

func errMissingField(name string) error {
	return fmt.Errorf("%s is required", name)
}

func errUnknownCommand(cmd string) error {
	return fmt.Errorf("unknown tool_request command %q", cmd)
}

func toolSummary(info registry.ToolInfo) map[string]any {
	return map[string]any{
		"name": info.Name, "category": info.Category,
		"version": info.Version, "description": info.Description,
	}
}

func toolSummaries(infos []registry.ToolInfo) []map[string]any {
	out := make([]map[string]any, len(infos))
	for i, info := range infos {
		out[i] = toolSummary(info)
	}
	return out
}

func osPID() int { return os.Getpid() }

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(osPID())), 0o644)
}

func removePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "kernel: remove pid file")
	}
	return nil
}

// send encodes and writes a reply on ch, addressed to identities (empty for
// iopub publications).
func (k *Kernel) send(ch wire.Channel, msgType string, parent wire.Header, content any, identities ...[][]byte) error {
	header := wire.NewHeader(parent.Session, msgType, "kernel")
	var ids [][]byte
	if len(identities) > 0 {
		ids = identities[0]
	}
	parts, err := wire.Encode(k.key, header, parent, nil, content, ids...)
	if err != nil {
		return errors.Wrap(err, "kernel: encode message")
	}
	return k.deps.Transport.Send(ch, parts)
}

func (k *Kernel) publishStatus(state string, parent wire.Header) {
	if err := k.send(wire.ChannelIOPub, "status", parent, map[string]any{"execution_state": state}); err != nil {
		k.log.Warn("publish status failed", zap.Error(err))
	}
}

func (k *Kernel) replyError(ch wire.Channel, msg *wire.Message, cause error) {
	_ = k.send(ch, errorReplyType(msg.Header.MsgType), msg.Header, map[string]any{
		"status": "error",
		"ename":  "Error",
		"evalue": cause.Error(),
	}, msg.Identities)
}

func errorReplyType(msgType string) string {
	switch msgType {
	case "execute_request":
		return "execute_reply"
	case "tool_request":
		return "tool_reply"
	case "debug_request":
		return "debug_reply"
	default:
		return "error"
	}
}
