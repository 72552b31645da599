package dali

func (s *Slave) startSend() {
	s.answer = byte(s.pending.Load())
	s.bit, s.count = 0, 0
	s.mode.Store(uint32(Sending))
}

// sendTick shifts the answer out. Only half-bit boundaries do work: the
// first half of a bit cell is set to the inverse of the bit (if the line is
// not there already) so the mid-bit transition to the bit value always
// exists.
func (s *Slave) sendTick() {
	t := s.count
	s.count++
	if t%TicksPerHalfBit != 0 {
		return
	}
	switch {
	case t < sendStartBit:
		// settling time after the forward frame
	case t == sendStartBit:
		s.line.WriteOutput(false)
	case t == sendStartEdge:
		s.line.WriteOutput(true)
	case t < sendStopBits:
		bit := (s.answer>>(7-s.bit))&1 == 1
		if (t-sendStartBit)%TicksPerBit == 0 {
			if s.line.Output() == bit {
				s.line.WriteOutput(!bit)
			}
		} else {
			s.line.WriteOutput(bit)
			s.bit++
		}
	case t == sendStopBits:
		s.line.WriteOutput(true)
	case t == SendTicks:
		s.answerCount.Add(1)
		s.idle()
	}
}
