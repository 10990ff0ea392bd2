package emit

// MultiEmitter fans one Event out to every configured Emitter, in order.
type MultiEmitter struct {
	emitters []Emitter
}

func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(e Event) {
	for _, em := range m.emitters {
		em.Emit(e)
	}
}
