//go:build linux

package util

import "testing"

func TestParseProcMounts(t *testing.T) {
	mounts, err := parseProcMounts()
	if err != nil {
		t.Fatalf("Failed to parse /proc/mounts: %v", err)
	}
	if _, found := mounts["/"]; !found {
		t.Error("Expected root filesystem to be mounted")
	}
}

func TestIsUnder(t *testing.T) {
	tests := []struct {
		path, mount string
		want        bool
	}{
		{"/mnt/nas/corpus", "/mnt/nas", true},
		{"/mnt/nas", "/mnt/nas", true},
		{"/mnt/nas2/corpus", "/mnt/nas", false},
		{"/home/user", "/", true},
	}
	for _, tt := range tests {
		if got := isUnder(tt.path, tt.mount); got != tt.want {
			t.Errorf("isUnder(%q, %q) = %v, want %v", tt.path, tt.mount, got, tt.want)
		}
	}
}

func TestIsNetworkFsType(t *testing.T) {
	for _, fs := range []string{"nfs4", "cifs", "fuse.sshfs", "SMB3"} {
		if !isNetworkFsType(fs) {
			t.Errorf("%s should be a network filesystem", fs)
		}
	}
	for _, fs := range []string{"ext4", "btrfs", "tmpfs", "overlay"} {
		if isNetworkFsType(fs) {
			t.Errorf("%s should be local", fs)
		}
	}
}
