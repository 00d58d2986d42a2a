package index

import (
	"io/fs"

	"github.com/clipgrep/clipgrep/internal/store"
)

// fileMeta is the filesystem metadata snapshot the change detector
// compares. Modification time is kept in Unix nanoseconds so the
// comparison against the stored record is exact.
type fileMeta struct {
	modifiedAt int64
	sizeBytes  int64
}

func metaOf(info fs.FileInfo) fileMeta {
	return fileMeta{
		modifiedAt: info.ModTime().UnixNano(),
		sizeBytes:  info.Size(),
	}
}

// unchanged reports whether every tracked metadata field of the record
// equals the freshly observed metadata. It is a cheap pre-filter: no
// content comparison happens here, so an unchanged verdict means the
// file skips hashing and encoding entirely.
func unchanged(rec *store.ImageRecord, meta fileMeta) bool {
	return rec.ModifiedAt == meta.modifiedAt && rec.SizeBytes == meta.sizeBytes
}
