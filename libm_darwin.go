//go:build darwin

package exprjit

import (
	"sync"

	"github.com/ebitengine/purego"
)

var libmOnce struct {
	sync.Once
	handle uintptr
	err    error
}

// libmResolve returns the C-ABI entry of a libSystem math function.
func libmResolve(name string) (uintptr, error) {
	libmOnce.Do(func() {
		libmOnce.handle, libmOnce.err = purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	})
	if libmOnce.err != nil {
		return 0, libmOnce.err
	}
	return purego.Dlsym(libmOnce.handle, name)
}
