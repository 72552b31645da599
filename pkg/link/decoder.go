package link

// LinkState is the state of the byte stream.
type LinkState int

// States are bit flags.
const (
	// StateSyncing means sequence numbers are not synchronized.
	StateSyncing LinkState = 0
	// StateReady means packets can be exchanged.
	StateReady LinkState = 0x01
	// StateBusy means a handshake or a packet is partially received.
	StateBusy LinkState = 0x02
)

// IsReady indicates packets can be exchanged.
func (s LinkState) IsReady() bool {
	return s&StateReady != 0
}

// IsBusy indicates a handshake or packet is in progress.
func (s LinkState) IsBusy() bool {
	return s&StateBusy != 0
}

// TimerAction tells what to do with the handshake timer.
type TimerAction int

// Timer actions.
const (
	TimerKeep TimerAction = iota
	TimerRestart
	TimerStop
)

// Control bytes.
const (
	ctlSync byte = 0xff
	ctlAck  byte = 0xfe
)

// Step is the outcome of feeding the Decoder.
type Step struct {
	// Control is a control byte to send along with the local sequence
	// number, 0 for nothing.
	Control byte
	State   LinkState
	Packet  *Packet
}

// Timer decides what to do with the handshake timer.
func (s Step) Timer() TimerAction {
	switch {
	case s.State.IsBusy(), s.Control == ctlSync:
		return TimerRestart
	case s.State.IsReady():
		return TimerStop
	}
	return TimerKeep
}

type decoderPhase int

const (
	phaseAwaitAck decoderPhase = iota // sync sent, waiting for peer's control byte
	phaseSyncSeq                      // peer sent sync, waiting its seq
	phaseAckSeq                       // peer sent ack, waiting its seq
	phaseIdle                         // synchronized, waiting for a packet seq
	phaseReAckSeq                     // ack while synchronized, validating seq
	phaseCode                         // waiting for code
	phaseLen                          // waiting for extended length
	phaseData                         // receiving data
)

// Decoder decodes the byte stream from the peer one byte at a time.
type Decoder struct {
	peer   Seq
	phase  decoderPhase
	packet *Packet
	filled int
}

// State returns the link state.
func (d *Decoder) State() LinkState {
	switch {
	case d.phase == phaseAwaitAck:
		return StateSyncing
	case d.phase == phaseIdle:
		return StateReady
	case d.phase > phaseIdle:
		return StateReady | StateBusy
	}
	return StateSyncing | StateBusy
}

// Restart drops any partial packet and starts synchronizing.
func (d *Decoder) Restart() Step {
	d.packet = nil
	return d.step(d.resync())
}

// Feed consumes one byte.
func (d *Decoder) Feed(b byte) Step {
	return d.step(d.feed(b))
}

// Expire notifies the handshake timer expired. Any incomplete handshake or
// packet restarts synchronization.
func (d *Decoder) Expire() Step {
	if d.phase == phaseIdle {
		return d.step(0, nil)
	}
	return d.step(d.resync())
}

func (d *Decoder) step(ctl byte, pkt *Packet) Step {
	return Step{Control: ctl, State: d.State(), Packet: pkt}
}

func (d *Decoder) feed(b byte) (byte, *Packet) {
	switch d.phase {
	case phaseAwaitAck:
		if b == ctlSync {
			d.phase = phaseSyncSeq
		} else if b == ctlAck {
			d.phase = phaseAckSeq
		}
	case phaseSyncSeq, phaseAckSeq:
		seq := Seq(b)
		if !seq.IsValid() {
			return d.resync()
		}
		reply := d.phase == phaseSyncSeq
		d.peer, d.phase = seq, phaseIdle
		if reply {
			return ctlAck, nil
		}
	case phaseIdle:
		switch {
		case b == ctlSync:
			d.phase = phaseSyncSeq
		case b == ctlAck:
			d.phase = phaseReAckSeq
		case Seq(b) != d.peer:
			return d.resync()
		default:
			d.packet = &Packet{Seq: d.peer}
			d.peer = d.peer.Next()
			d.phase = phaseCode
		}
	case phaseReAckSeq:
		if Seq(b) != d.peer {
			return d.resync()
		}
		d.phase = phaseIdle
	case phaseCode:
		d.packet.Code = b & codeMask
		switch l := (b & lenMask) >> lenShift; l {
		case 0:
			return d.complete()
		case lenFollow:
			d.phase = phaseLen
		default:
			d.expect(int(l))
		}
	case phaseLen:
		if b > MaxDataLen {
			return d.resync()
		}
		if b == 0 {
			return d.complete()
		}
		d.expect(int(b))
	case phaseData:
		d.packet.Data[d.filled] = b
		if d.filled++; d.filled == len(d.packet.Data) {
			return d.complete()
		}
	}
	return 0, nil
}

func (d *Decoder) expect(n int) {
	d.packet.Data, d.filled = make([]byte, n), 0
	d.phase = phaseData
}

func (d *Decoder) resync() (byte, *Packet) {
	d.phase = phaseAwaitAck
	return ctlSync, nil
}

func (d *Decoder) complete() (byte, *Packet) {
	pkt := d.packet
	d.packet, d.phase = nil, phaseIdle
	return 0, pkt
}
