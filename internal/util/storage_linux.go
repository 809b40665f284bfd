//go:build linux

package util

import (
	"bufio"
	"os"
	"strings"
	"syscall"
)

// Linux VFS magic numbers of network filesystems
var networkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0x517b:     "smb",
	0xfe534d42: "smb2",
	0x564c:     "ncp",
}

var networkFsTypes = []string{"nfs", "cifs", "smb", "ncpfs", "fuse.sshfs", "fuse.rclone"}

func detectPlatformMount(path string, stat *syscall.Statfs_t) (*MountInfo, error) {
	info := &MountInfo{}
	if proto, ok := networkMagic[uint32(stat.Type)]; ok {
		info.IsNetwork = true
		info.Protocol = proto
	}

	mounts, err := parseProcMounts()
	if err != nil {
		// the magic number is enough without /proc
		return info, nil
	}

	best := ""
	for mountPoint, fsType := range mounts {
		if !isUnder(path, mountPoint) || len(mountPoint) <= len(best) {
			continue
		}
		best = mountPoint
		info.MountPath = mountPoint
		if isNetworkFsType(fsType) {
			info.IsNetwork = true
			info.Protocol = strings.ToLower(fsType)
		}
	}
	return info, nil
}

func isUnder(path, mountPoint string) bool {
	if mountPoint == "/" || path == mountPoint {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mountPoint, "/")+"/")
}

func isNetworkFsType(fsType string) bool {
	fsType = strings.ToLower(fsType)
	for _, n := range networkFsTypes {
		if strings.Contains(fsType, n) {
			return true
		}
	}
	return false
}

// parseProcMounts maps mount points to filesystem types
func parseProcMounts() (map[string]string, error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mounts := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}
