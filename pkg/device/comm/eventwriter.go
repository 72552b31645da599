package comm

import (
	"context"

	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// EventWriter implements device.Registrar by encoding events onto a
// PacketWriter. It never receives commands.
type EventWriter struct {
	Writer PacketWriter
}

// SendEvent implements Registrar.
func (w *EventWriter) SendEvent(ctx context.Context, msg fx.Message) error {
	pkt, err := msgs.Encode(msg)
	if err != nil {
		return err
	}
	return w.Writer.WritePacket(pkt)
}
