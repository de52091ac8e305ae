package blocks

// Block is one positioned text fragment extracted from a page or paragraph.
// Y orders blocks within a page: a pixel coordinate for raster sources, a
// paragraph sequence index for structured ones. Same comparison either way.
type Block struct {
	Type     string  `json:"type"`
	Text     string  `json:"text"`
	Page     int     `json:"page"`
	Y        float64 `json:"y"`
	Filename string  `json:"filename,omitempty"`
	UserID   string  `json:"user_id,omitempty"`
}

// Chunk is the final, immutable retrieval unit. ChunkID is sequential within
// one ingestion run and stable for the lifetime of the index built from it.
type Chunk struct {
	ChunkID  int    `json:"chunk_id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	Page     int    `json:"page"`
	UserID   string `json:"user_id"`
}
