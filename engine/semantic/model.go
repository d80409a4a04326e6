package semantic

// VectorRecord is a single point to store: id, embedding, and the
// listing payload flattened to primitive values.
type VectorRecord struct {
	ID        PointID
	Embedding []float32
	Payload   map[string]any
}

// PointID identifies a point either by an unsigned integer (the source
// record's natural id) or by a UUID string (fallback for sources
// without a usable id).
type PointID struct {
	Num  uint64
	UUID string
}

// NumID creates a numeric point id.
func NumID(n uint64) PointID { return PointID{Num: n} }

// UUIDID creates a UUID point id.
func UUIDID(u string) PointID { return PointID{UUID: u} }

// Range is a numeric range condition on a payload field. Nil bounds are
// unconstrained on that side.
type Range struct {
	Key string
	GTE *float64
	LTE *float64
}

// Query is one similarity search: a query vector plus optional
// structured predicates. Ranges and Match conditions are ANDed.
type Query struct {
	Vector []float32
	Limit  uint64
	Ranges []Range
	Match  map[string]string
}

// Hit is a single search result ordered by descending cosine score.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}
