//go:build linux || freebsd

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

// libmResolve returns the C-ABI entry of a libm function. The generated
// code calls these pointers directly.
func libmResolve(name string) (uintptr, error) {
	libmOnce.Do(func() {
		libmOnce.handle, libmOnce.err = purego.Dlopen("libm.so.6", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	})
	if libmOnce.err != nil {
		return 0, libmOnce.err
	}
	return purego.Dlsym(libmOnce.handle, name)
}
