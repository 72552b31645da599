package trace

// Record is the data model of a traced item.
type Record map[string]interface{}

// Message is one line of trace output.
type Message struct {
	Action string `json:"action"`
	Record Record `json:"record,omitempty"`
}

// Actions
const (
	ActionReset = "reset"
	ActionEdge  = "edge"
	ActionEvent = "event"
	ActionDrop  = "drop"
)

// Properties
const (
	PropType  = "type"
	PropStep  = "step"
	PropLevel = "level"
	PropEvent = "event"
	PropCount = "count"
)

// NewRecord creates a Record.
func NewRecord(typ string) Record {
	r := make(Record)
	r[PropType] = typ
	return r
}

// At sets the bus step.
func (r Record) At(step uint64) Record {
	r[PropStep] = step
	return r
}

// Level sets the bus level.
func (r Record) Level(high bool) Record {
	r[PropLevel] = high
	return r
}

// With sets a custom property.
func (r Record) With(key string, val interface{}) Record {
	r[key] = val
	return r
}
