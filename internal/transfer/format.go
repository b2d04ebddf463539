package transfer

import (
	"fmt"
	"path"

	"github.com/ks2178o2/callharbor/constants"
)

// EnsureCompatible validates the file's extension against the supported audio
// set and returns the payload with its normalized extension. No transcoding
// happens here; an unsupported format is a file-level failure the caller
// records, never a job-level one.
func EnsureCompatible(data []byte, filename string) ([]byte, string, error) {
	ext := constants.NormalizeExt(path.Ext(filename))
	if ext == "" {
		return nil, "", fmt.Errorf("file %q has no extension; supported: wav, mp3, m4a, webm, ogg", filename)
	}
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, "", fmt.Errorf("unsupported audio format %q for file %q; supported: wav, mp3, m4a, webm, ogg", ext, filename)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("file %q is empty", filename)
	}
	return data, ext, nil
}
