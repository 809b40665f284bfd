//go:build darwin

package util

import (
	"strings"
	"syscall"
)

var networkFsTypes = []string{"nfs", "smbfs", "afpfs", "cifs", "webdav", "osxfuse", "macfuse"}

func detectPlatformMount(path string, stat *syscall.Statfs_t) (*MountInfo, error) {
	fsType := strings.ToLower(int8ArrayToString(stat.Fstypename[:]))
	info := &MountInfo{MountPath: int8ArrayToString(stat.Mntonname[:])}
	for _, n := range networkFsTypes {
		if strings.Contains(fsType, n) {
			info.IsNetwork = true
			info.Protocol = fsType
			break
		}
	}
	return info, nil
}

// int8ArrayToString converts a NUL-terminated C char array
func int8ArrayToString(arr []int8) string {
	b := make([]byte, 0, len(arr))
	for _, c := range arr {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}
