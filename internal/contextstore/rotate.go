package contextstore

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const rotationFileMode = 0o600

// NextAvailableRotation scans path's siblings for the highest existing
// "<stem>_<k><ext>" suffix and atomically reserves the next one via
// exclusive file creation, so concurrent callers racing on the same stem
// always walk away with distinct paths. Returns an empty string if path's
// parent directory does not exist.
func NextAvailableRotation(path string) (string, error) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	ext := filepath.Ext(path)
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, ext)
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(stem) + `_(\d+)` + regexp.QuoteMeta(ext) + "$")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	maxNum := 0
	for _, e := range entries {
		if m := pattern.FindStringSubmatch(e.Name()); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n > maxNum {
				maxNum = n
			}
		}
	}

	for n := maxNum + 1; ; n++ {
		candidate := filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
		if reserveRotationPath(candidate) {
			return candidate, nil
		}
	}
}

// reserveRotationPath atomically creates an empty placeholder at path,
// reporting false if it already exists (another rotation beat us to it).
func reserveRotationPath(path string) bool {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, rotationFileMode)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
