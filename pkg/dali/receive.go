package dali

// receiveTick samples the input once and advances the forward frame decoder.
// The tick counter holds the ticks since the last accepted edge; edges that
// arrive too early (bit boundaries between two equal bits) are ignored and
// do not reset it.
func (s *Slave) receiveTick() {
	s.current = s.line.ReadInput()
	s.count++

	var fault FaultCode
	if s.current != s.previous {
		switch s.bit {
		case rxStartBit:
			if s.count > GlitchTicks {
				s.count = 0
				s.bit = rxFirstBit
			}
		case rxStopBit1:
			if s.count > EarliestEdge {
				fault = FaultStopBitEdge
			}
		case rxStopBit2:
			fault = FaultStopBitEdge
		default:
			if s.count > EarliestEdge {
				s.storeBit(s.current)
				s.bit++
				s.count = 0
			}
		}
	} else {
		switch s.bit {
		case rxStartBit:
			if s.count == TicksPerBit {
				fault = FaultStartBit
			}
		case rxStopBit1:
			if s.count == TicksPerBit {
				if !s.current {
					fault = FaultStopBitLevel
				} else {
					s.bit++
					s.count = 0
				}
			}
		case rxStopBit2:
			if s.count == LatestEdge {
				s.previous = s.current
				s.complete()
				return
			}
		default:
			if s.count == LatestEdge {
				fault = FaultMissingEdge
			}
		}
	}
	s.previous = s.current

	if fault != 0 {
		s.fail(fault)
	}
}

func (s *Slave) storeBit(level bool) {
	if !level {
		return
	}
	if s.bit < rxFirstData {
		s.address |= 1 << (rxFirstData - 1 - s.bit)
	} else {
		s.data |= 1 << (rxStopBit1 - 1 - s.bit)
	}
}

func (s *Slave) complete() {
	address, data := s.address, s.data
	s.frameCount.Add(1)
	s.idle()
	if s.frames != nil {
		s.frames.HandleFrame(address, data)
	}
}
