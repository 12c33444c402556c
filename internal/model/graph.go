package model

// RelationshipType names a signal that contributed to a relationship edge.
type RelationshipType string

const (
	RelationshipCategory RelationshipType = "category"
	RelationshipTags     RelationshipType = "tags"
	RelationshipKeywords RelationshipType = "keywords"
	RelationshipTitle    RelationshipType = "title"
)

// Edge is a weighted topical link between two knowledge entries.
// Edges are undirected in meaning and stored with SourceID < TargetID.
type Edge struct {
	SourceID          int64              `json:"source_id"`
	TargetID          int64              `json:"target_id"`
	Weight            float64            `json:"weight"`
	RelationshipTypes []RelationshipType `json:"relationship_types"`
}

// Other returns the endpoint of e opposite to id.
func (e Edge) Other(id int64) int64 {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}
