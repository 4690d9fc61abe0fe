package domain

// Extraction is the result of pulling one window from the source API.
// DataPath and MetadataPath are empty when nothing was persisted.
type Extraction struct {
	Dataset      string
	Table        *Table
	Metadata     map[string]any
	DataPath     string
	MetadataPath string
}
