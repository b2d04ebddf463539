package constants

import "strings"

// AllowedExtensions holds the audio file extensions accepted for import.
var AllowedExtensions = map[string]struct{}{
	"wav":  {},
	"mp3":  {},
	"m4a":  {},
	"webm": {},
	"ogg":  {},
}

// MaxDownloadBytes caps a single remote file download (1 GiB).
const MaxDownloadBytes = 1 << 30

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether the (dotted or bare) extension is importable.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// ContentTypeForExt returns the MIME type used when uploading to storage.
func ContentTypeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "m4a":
		return "audio/mp4"
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
