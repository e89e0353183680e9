//go:build windows

package exprjit

import "golang.org/x/sys/windows"

var ucrtbase = windows.NewLazySystemDLL("ucrtbase.dll")

// libmResolve returns the C-ABI entry of a UCRT math function.
func libmResolve(name string) (uintptr, error) {
	proc := ucrtbase.NewProc(name)
	if err := proc.Find(); err != nil {
		return 0, err
	}
	return proc.Addr(), nil
}
