package indexstore

// UnavailableStore is a cgo-free Store that reports the index store as
// empty. It exists so the CLI driver has something concrete to wire the
// Reader against on platforms or builds where the real libIndexStore loader
// hasn't been linked in, without the Reader needing a nil check. Opening
// the real dynamic library is the caller's responsibility; this is not that
// loader.
type UnavailableStore struct{}

// CanonicalOccurrences implements Store by visiting nothing.
func (UnavailableStore) CanonicalOccurrences(visit func(CanonicalOccurrence) bool) error {
	return nil
}

// OccurrencesForUSR implements Store by visiting nothing.
func (UnavailableStore) OccurrencesForUSR(usr string, visit func(RawOccurrence) bool) error {
	return nil
}
