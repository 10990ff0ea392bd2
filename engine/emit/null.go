package emit

// NullEmitter discards every event. Useful for tests and for embedders that
// only want the broadcast path (service.Broadcaster implements Emitter
// separately) without duplicating log output.
type NullEmitter struct{}

func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event) {}
