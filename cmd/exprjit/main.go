package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Archie3d/exprjit"
)

var dumpCode bool

func main() {
	root := &cobra.Command{
		Use:   "exprjit [expression [name=value...]]",
		Short: "JIT-compile and evaluate floating-point expressions",
		Long: `exprjit compiles an expression such as "sin(x)/x" to native code and
evaluates it. Trailing name=value arguments bind variables before the
compile. Without arguments it reads lines from stdin, interactively when
stdin is a terminal.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().BoolVar(&dumpCode, "dump", false, "hex-dump the generated machine code")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "exprjit:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	e, err := exprjit.New()
	if err != nil {
		return err
	}
	defer e.Close()

	if len(args) > 0 {
		for _, arg := range args[1:] {
			name, val, err := parseBinding(arg)
			if err != nil {
				return err
			}
			e.BindVar(name, val)
		}
		if err := e.Compile(args[0]); err != nil {
			return err
		}
		if dumpCode {
			dump(e)
		}
		fmt.Printf("%g\n", e.Eval())
		return nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return runRepl(e)
	}
	return runPipe(e)
}

// runPipe evaluates one expression or assignment per line of stdin.
func runPipe(e *exprjit.Expr) error {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if name, val, err := parseBinding(line); err == nil {
			e.BindVar(name, val)
			continue
		}
		if err := e.Compile(line); err != nil {
			fmt.Fprintln(os.Stderr, "exprjit:", err)
			continue
		}
		fmt.Printf("%g\n", e.Eval())
	}
	return sc.Err()
}

// parseBinding splits "name=value" or "name = value".
func parseBinding(s string) (string, float64, error) {
	name, valText, ok := strings.Cut(s, "=")
	if !ok {
		return "", 0, fmt.Errorf("not a binding: %q", s)
	}
	name = strings.TrimSpace(name)
	if !validIdent(name) {
		return "", 0, fmt.Errorf("bad variable name: %q", name)
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(valText), 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad value in %q", s)
	}
	return name, val, nil
}

func validIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		alpha := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		digit := c >= '0' && c <= '9'
		if i == 0 && !alpha {
			return false
		}
		if !alpha && !digit {
			return false
		}
	}
	return len(s) > 0
}
