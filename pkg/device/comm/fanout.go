package comm

import (
	"sync"

	fx "github.com/robotalks/dali.go/pkg/framework"
)

// Fanout writes every packet to all attached writers. A writer failing is
// detached and the error is reported to OnError.
type Fanout struct {
	OnError func(PacketWriter, error)

	writers []PacketWriter
	lock    sync.Mutex
}

// Attach adds a writer.
func (f *Fanout) Attach(w PacketWriter) {
	f.lock.Lock()
	f.writers = append(f.writers, w)
	f.lock.Unlock()
}

// Detach removes a writer.
func (f *Fanout) Detach(w PacketWriter) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for i, wr := range f.writers {
		if wr == w {
			f.writers = append(f.writers[:i], f.writers[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached writers.
func (f *Fanout) Len() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.writers)
}

// WritePacket implements PacketWriter. It only fails when every writer
// fails.
func (f *Fanout) WritePacket(pkt []byte) error {
	f.lock.Lock()
	writers := append([]PacketWriter(nil), f.writers...)
	f.lock.Unlock()
	var errs fx.AggregatedError
	for _, w := range writers {
		if err := w.WritePacket(pkt); err != nil {
			f.Detach(w)
			errs.Add(err)
			if h := f.OnError; h != nil {
				h(w, err)
			}
		}
	}
	if len(writers) > 0 && len(errs.Errors) == len(writers) {
		return errs.Aggregate()
	}
	return nil
}
