package models

// GroundingSource is a single cited web source.
type GroundingSource struct {
	Title  string `json:"title"`
	URI    string `json:"uri"`
	Domain string `json:"domain,omitempty"`
}

// GroundingSupport maps a text segment of the response to the sources
// that back it.
type GroundingSupport struct {
	Text          string `json:"text"`
	StartIndex    int    `json:"startIndex"`
	EndIndex      int    `json:"endIndex"`
	SourceIndices []int  `json:"sourceIndices"`
}

// GroundingMetadata is citation metadata returned by a grounded search
// call: the queries the model issued and the sources it cited.
//
// Field order matters: the serialized payload is parsed by the frontend
// and keys are emitted in declaration order.
type GroundingMetadata struct {
	Queries  []string           `json:"queries"`
	Sources  []GroundingSource  `json:"sources"`
	Supports []GroundingSupport `json:"supports"`
}
