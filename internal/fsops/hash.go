package fsops

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Hash returns a 16-hex-digit (8-byte) content digest of the file at path,
// or ("", false) on failure. BLAKE3 is used for its speed on large files
// and truncated to 8 bytes since the wire format only needs a short content
// fingerprint, not a full cryptographic digest (spec.md §4.1).
func (a *Adapter) Hash(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		a.warn("fs_hash", path, err)
		return "", false
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		a.warn("fs_hash", path, err)
		return "", false
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8]), true
}
