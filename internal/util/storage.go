package util

import (
	"fmt"
	"path/filepath"
	"syscall"
)

// MountInfo describes the filesystem holding a path
type MountInfo struct {
	IsNetwork bool   // NFS, SMB/CIFS, sshfs and similar mounts
	Protocol  string // filesystem type when IsNetwork, empty otherwise
	MountPath string
}

// DetectMount inspects the filesystem holding path. The path must exist.
func DetectMount(path string) (*MountInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	return detectPlatformMount(absPath, &stat)
}

// IsNetworkPath reports whether path sits on a network mount. Detection
// errors count as local.
func IsNetworkPath(path string) bool {
	info, err := DetectMount(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}
