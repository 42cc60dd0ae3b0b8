// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux && shm_posix

package shm

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// glibc implements shm_open as a plain open inside a tmpfs mount,
// usually /dev/shm. The directory is located once and cached.
const (
	maxNameLen    = 255
	defaultShmDir = "/dev/shm/"
	tmpfsMagic    = 0x01021994
	ramfsMagic    = 0x858458f6
)

var (
	shmDirOnce sync.Once
	shmDir     string
)

// glibc/sysdeps/posix/shm_open.c
func shmOpen(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

func shmUnlink(path string) error {
	return os.Remove(path)
}

// shmName turns a segment name into a path inside the shm filesystem.
// A single leading slash is tolerated the way shm_open tolerates it.
//
// glibc/sysdeps/posix/shm-directory.h
func shmName(name string) (string, error) {
	name = strings.TrimLeft(name, "/")
	if len(name) == 0 || strings.Contains(name, "/") {
		return "", errors.Errorf("invalid segment name %q", name)
	}
	if len(name) >= maxNameLen {
		return "", newError(NameTooLong, "shm_open", name, nil)
	}
	dir, err := shmDirectory()
	if err != nil {
		return "", errors.Wrap(err, "unable to build the segment path")
	}
	return dir + name, nil
}

// glibc/sysdeps/unix/sysv/linux/shm-directory.c
func shmDirectory() (string, error) {
	shmDirOnce.Do(func() {
		if isShmDir(defaultShmDir) {
			shmDir = defaultShmDir
		} else {
			shmDir = shmDirFromMounts()
		}
	})
	if len(shmDir) == 0 {
		return "", errors.New("no shared memory filesystem is mounted")
	}
	return shmDir, nil
}

// isShmDir reports whether path sits on a tmpfs or ramfs mount.
func isShmDir(path string) bool {
	if len(path) == 0 {
		return false
	}
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return false
	}
	// fs.Type differs in width across architectures, hence the conversion.
	t := int64(fs.Type)
	return t == tmpfsMagic || t == ramfsMagic
}

func shmDirFromMounts() string {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		if file, err = os.Open("/etc/fstab"); err != nil {
			return ""
		}
	}
	defer file.Close()
	return shmDirFromReader(file)
}

// shmDirFromReader scans an fstab-format listing for the first tmpfs or
// shm mount point which checks out as one.
func shmDirFromReader(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		dir, fstype, ok := scanMountRecord(scanner.Text())
		if !ok || (fstype != "tmpfs" && fstype != "shm") {
			continue
		}
		if isShmDir(dir) {
			if !strings.HasSuffix(dir, "/") {
				dir += "/"
			}
			return dir
		}
	}
	return ""
}

// scanMountRecord pulls the mount point and filesystem type out of one
// fstab-format line.
func scanMountRecord(record string) (dir, fstype string, ok bool) {
	fields := strings.Fields(record)
	if len(fields) < 3 || strings.HasPrefix(fields[0], "#") {
		return "", "", false
	}
	return fields[1], fields[2], true
}
