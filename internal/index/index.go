package index

// EntityIndex defines the interface for entity indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type EntityIndex interface {
	UpsertEntity(row EntityRow, content string, edges []Edge) error
	DeleteEntity(collection, id string) error
	AllChecksums() (map[string]string, error)
	ListEntities(collection string, limit, offset int) ([]EntityRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []Edge, error)
	Inbound(collection, id string) ([]Edge, error)
	Close() error
}

// Verify *DB satisfies EntityIndex at compile time.
var _ EntityIndex = (*DB)(nil)
