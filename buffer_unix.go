//go:build linux || darwin || freebsd

package exprjit

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

func osMapRW(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, ErrPageAlloc
	}
	return mem, nil
}

func osProtectRX(mem []byte) error {
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return ErrPageAlloc
	}
	return nil
}

func osUnmap(mem []byte) error {
	return unix.Munmap(mem)
}

func bufBase(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}
