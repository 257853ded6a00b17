package store

// ackSet records acknowledged alert-instance ids; entries never expire.
type ackSet map[string]struct{}

func (a ackSet) add(alertID string) {
	a[alertID] = struct{}{}
}

func (a ackSet) has(alertID string) bool {
	_, ok := a[alertID]
	return ok
}
