package dali

// checkBus counts consecutive space level samples and reports a bus failure
// every time the count exceeds 500 ms worth of ticks.
func (s *Slave) checkBus() {
	if s.line.ReadInput() {
		s.failures.Store(0)
		return
	}
	if s.failures.Add(1) > s.timing.FailureTicks {
		s.failures.Store(0)
		s.busCount.Add(1)
		if s.faults != nil {
			s.faults.HandleFault(FaultBusFailure)
		}
	}
}
