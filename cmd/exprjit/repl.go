package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/Archie3d/exprjit"
)

// runRepl runs the interactive loop. Lines are expressions, "name = value"
// bindings, or colon commands.
func runRepl(e *exprjit.Expr) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":q":
			return nil
		case line == ":dump":
			dump(e)
			continue
		case line == ":help":
			fmt.Println("expression        compile and evaluate")
			fmt.Println("name = value      bind a variable (reevaluates)")
			fmt.Println(":dump             hex-dump the current program")
			fmt.Println(":quit             leave")
			continue
		}

		if name, val, err := parseBinding(line); err == nil {
			e.BindVar(name, val)
			if e.Compiled() {
				fmt.Printf("%g\n", e.Eval())
			}
			continue
		}

		if err := e.Compile(line); err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Printf("%g\n", e.Eval())
	}
}

func dump(e *exprjit.Expr) {
	code := e.Dump()
	if code == nil {
		fmt.Fprintln(os.Stderr, "no program compiled")
		return
	}
	fmt.Print(hex.Dump(code))
}
