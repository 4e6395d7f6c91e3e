package models

// FileInfo describes one source workbook or generated CSV in the data
// directory.
type FileInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Rows      int    `json:"rows"`
	Modified  string `json:"modified"`
	Generated bool   `json:"generated"`
	Encrypted bool   `json:"encrypted"`
}
