package pcap

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CaptureExtensions are the file extensions treated as capture files.
var CaptureExtensions = []string{".pcap", ".pcapng", ".cap"}

// IsCaptureFile reports whether path has a capture file extension.
func IsCaptureFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range CaptureExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// CollectCaptureFiles returns sorted capture files under the root directory.
func CollectCaptureFiles(root string) ([]string, error) {
	var captures []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsCaptureFile(path) {
			captures = append(captures, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk captures: %w", err)
	}
	sort.Strings(captures)
	return captures, nil
}
