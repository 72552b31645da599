package node

import "sync"

// AnswerTable maps forward frames to answer bytes. It is read from tick
// context and written from the loop.
type AnswerTable struct {
	answers map[uint16]byte
	lock    sync.RWMutex
}

// NewAnswerTable creates a table with initial answers keyed by
// address<<8|data.
func NewAnswerTable(answers map[uint16]byte) *AnswerTable {
	t := &AnswerTable{answers: make(map[uint16]byte, len(answers))}
	for k, v := range answers {
		t.answers[k] = v
	}
	return t
}

func tableKey(address, data byte) uint16 {
	return uint16(address)<<8 | uint16(data)
}

// Lookup finds the answer to a forward frame.
func (t *AnswerTable) Lookup(address, data byte) (answer byte, ok bool) {
	t.lock.RLock()
	answer, ok = t.answers[tableKey(address, data)]
	t.lock.RUnlock()
	return
}

// Set adds or replaces an answer.
func (t *AnswerTable) Set(address, data, answer byte) {
	t.lock.Lock()
	t.answers[tableKey(address, data)] = answer
	t.lock.Unlock()
}

// Remove deletes an answer, reporting whether it existed.
func (t *AnswerTable) Remove(address, data byte) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	key := tableKey(address, data)
	_, ok := t.answers[key]
	delete(t.answers, key)
	return ok
}

// Len returns the number of answers.
func (t *AnswerTable) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.answers)
}
