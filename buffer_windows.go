//go:build windows

package exprjit

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const pageSize = 4096

func osMapRW(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_COMMIT|windows.MEM_RESERVE,
		windows.PAGE_READWRITE)
	if err != nil {
		return nil, ErrPageAlloc
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func osProtectRX(mem []byte) error {
	var old uint32
	err := windows.VirtualProtect(bufBase(mem), uintptr(len(mem)),
		windows.PAGE_EXECUTE_READ, &old)
	if err != nil {
		return ErrPageAlloc
	}
	return nil
}

func osUnmap(mem []byte) error {
	return windows.VirtualFree(bufBase(mem), 0, windows.MEM_RELEASE)
}

func bufBase(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}
