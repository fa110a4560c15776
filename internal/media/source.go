// Package media describes the files users send and derives the local file
// name and extension for them without touching the transport.
package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const videoExt = "mp4"

// Source is a downloadable file reference. The concrete variants are
// Document, Video and Generic.
type Source interface {
	// Ref is the transport's handle used to download the file.
	Ref() string
	// SizeHint is the size announced by the transport, 0 when unknown.
	SizeHint() int64

	isSource()
}

// Document is a file sent as a document, normally carrying its own name.
type Document struct {
	FileID   string
	Name     string
	MimeType string
	Size     int64
}

// Video is a video message. Videos usually arrive without a file name.
type Video struct {
	FileID   string
	UniqueID string
	Name     string
	Size     int64
}

// Generic covers everything else (photos, audio, voice notes).
type Generic struct {
	FileID   string
	UniqueID string
	MimeType string
	Size     int64
}

func (d Document) Ref() string     { return d.FileID }
func (d Document) SizeHint() int64 { return d.Size }
func (Document) isSource()         {}

func (v Video) Ref() string     { return v.FileID }
func (v Video) SizeHint() int64 { return v.Size }
func (Video) isSource()         {}

func (g Generic) Ref() string     { return g.FileID }
func (g Generic) SizeHint() int64 { return g.Size }
func (Generic) isSource()         {}

// Resolve returns the display name and extension (without the dot) for src.
//
//   - a named document keeps its name; the extension is the part after the
//     last dot (empty if there is none), falling back to the MIME type;
//   - a video without a name is named after its id with extension "mp4";
//   - anything else is named after its id, the extension comes from the MIME
//     type when it is known.
func Resolve(src Source) (name, ext string) {
	switch s := src.(type) {
	case Document:
		if s.Name != "" {
			return s.Name, extOf(s.Name, s.MimeType)
		}
		return s.FileID, extFromMime(s.MimeType)
	case Video:
		if s.Name != "" {
			ext := extOf(s.Name, "")
			if ext == "" {
				ext = videoExt
			}
			return s.Name, ext
		}
		return idOr(s.UniqueID, s.FileID), videoExt
	case Generic:
		return idOr(s.UniqueID, s.FileID), extFromMime(s.MimeType)
	default:
		return "", ""
	}
}

// LocalPrefix starts every temp file name produced by LocalName.
const LocalPrefix = "downloaded_file_"

// LocalName is the temporary file name used while a job is in flight.
// It is unique per chat message so concurrent users never collide.
func LocalName(chatID int64, messageID int, ext string) string {
	name := fmt.Sprintf("%s%d_%d", LocalPrefix, chatID, messageID)
	if ext != "" {
		name += "." + ext
	}
	return name
}

// UploadName is the object name used on the storage side.
func UploadName(src Source) string {
	name, ext := Resolve(src)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	if ext != "" && !strings.HasSuffix(strings.ToLower(name), "."+strings.ToLower(ext)) {
		name += "." + ext
	}
	return name
}

func extOf(name, mime string) string {
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return extFromMime(mime)
}

func extFromMime(mime string) string {
	if mime == "" {
		return ""
	}
	m := mimetype.Lookup(mime)
	if m == nil {
		return ""
	}
	return strings.TrimPrefix(m.Extension(), ".")
}

func idOr(id, fallback string) string {
	if id != "" {
		return id
	}
	return fallback
}
