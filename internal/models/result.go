package models

const (
	SaveStatusStored   = "success"
	SaveStatusFallback = "saved_to_file"
)

// SaveResult tells where a record landed.
type SaveResult struct {
	Status     string `json:"status"`
	Collection string `json:"collection,omitempty"`
	ID         string `json:"id,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Fallback reports a save that was written to a local file.
func (r SaveResult) Fallback() bool {
	return r.Status == SaveStatusFallback
}

// DeleteResult is returned for a deleted record so callers can remove its image.
type DeleteResult struct {
	Deleted  bool    `json:"deleted"`
	ImageURL *string `json:"image_url"`
}
