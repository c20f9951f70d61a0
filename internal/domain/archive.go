package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Filters are the query parameters passed to an ONC service method.
type Filters map[string]string

// Clone returns a copy that can be modified without touching f.
func (f Filters) Clone() Filters {
	if f == nil {
		return Filters{}
	}
	return maps.Clone(f)
}

// Has reports whether every key is present with a non-empty value.
func (f Filters) Has(keys ...string) bool {
	for _, k := range keys {
		if f[k] == "" {
			return false
		}
	}
	return true
}

// FileRecord is one entry of an archive file list. The service returns bare
// filenames unless returnOptions is set, in which case each entry is an
// object carrying metadata such as dateFrom or deviceCode.
type FileRecord struct {
	Filename string
	OutPath  string
	Meta     map[string]any
}

// UnmarshalJSON accepts either a JSON string or an object with a filename key.
func (r *FileRecord) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = FileRecord{Filename: name}
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("file record must be a string or an object: %w", err)
	}

	name, ok := obj["filename"].(string)
	if !ok {
		return fmt.Errorf("file record has no filename: %s", data)
	}
	out, _ := obj["outPath"].(string)
	delete(obj, "filename")
	delete(obj, "outPath")
	if len(obj) == 0 {
		obj = nil
	}

	*r = FileRecord{Filename: name, OutPath: out, Meta: obj}
	return nil
}

// MarshalJSON writes the record as an object, flattening Meta.
func (r FileRecord) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Meta)+2)
	maps.Copy(obj, r.Meta)
	obj["filename"] = r.Filename
	if r.OutPath != "" {
		obj["outPath"] = r.OutPath
	}
	return json.Marshal(obj)
}

// Request converts the record into a DownloadRequest.
func (r FileRecord) Request() DownloadRequest {
	return DownloadRequest{Filename: r.Filename, OutPath: r.OutPath}
}

// FileListResult is the response of getListByLocation and getListByDevice.
// Files keeps the order returned by the server, or the page order when all
// pages were fetched.
type FileListResult struct {
	Files    []FileRecord    `json:"files"`
	Next     json.RawMessage `json:"next,omitempty"`
	QueryURL string          `json:"queryUrl,omitempty"`
}

// Requests converts every file of the result into a DownloadRequest.
func (r *FileListResult) Requests() []DownloadRequest {
	reqs := make([]DownloadRequest, 0, len(r.Files))
	for _, f := range r.Files {
		reqs = append(reqs, f.Request())
	}
	return reqs
}
