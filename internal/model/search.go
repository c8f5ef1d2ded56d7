package model

// SearchResult is one identity offered by the lookup feature.
type SearchResult struct {
	Name string       `json:"name"`
	Kind IdentityKind `json:"kind"`
}
