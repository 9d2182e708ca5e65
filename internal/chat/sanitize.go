package chat

// Sanitize strips tool-call parts from historical messages before they are
// replayed to the model. The model's message format cannot represent
// mid-flight or terminal UI tool states; only text parts survive.
//
// Sanitize is pure and order-preserving: input messages are never mutated,
// text parts are never reordered or dropped, and sanitizing twice equals
// sanitizing once.
func Sanitize(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		cp := m
		cp.Parts = make([]Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.IsText() {
				cp.Parts = append(cp.Parts, p)
			}
		}
		out[i] = cp
	}
	return out
}
