package core

import "time"

// FileMeta describes an uploaded file. Name is the storage name (uuid plus
// the original extension); OriginalName is what the uploader called it.
type FileMeta struct {
	ID           string
	Name         string
	OriginalName string
	Size         int64
	ContentType  string
	UploadedBy   string
	UploadedAt   time.Time
}
