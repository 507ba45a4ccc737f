package domain

// WatchRef represents one entry of the tracked watch universe.
// Corresponds to watch_universe table in PostgreSQL.
type WatchRef struct {
	Brand     string // manufacturer, e.g. "Omega"
	Reference string // model reference, e.g. "310.30.42.50.01.001"
	Nickname  string // informal name, e.g. "Speedmaster Moonwatch", may be empty
}

// Key returns the universe entry's entity key.
func (w WatchRef) Key() EntityKey {
	return EntityKey{Brand: w.Brand, Reference: w.Reference}
}
