// Command rbjitc is the driver for the compilation core: it loads a
// fixture program from a YAML file (pkg/jitfixture.Load), runs one
// named method of it through compiler.Manager.Compile, and
// prints a textual or .dot CFG dump depending on a flag (spec §4.10:
// "cmd/rbjitc follows pkg/cli/entry.go's Run(args []string) int shape:
// loads a fixture program..., runs the compiler pipeline, prints a
// .dot or textual CFG dump depending on a flag"). Unlike the teacher's
// own cmd/funxy, this is a small fixture-driving harness over the core,
// not a language runtime's entry point — there is no parser here.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/rbjitgo/internal/jit/compiler"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/jitdebug"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rbjitc [-dot] [-persist PATH] <fixture.yaml> <ClassName> <methodName>")
}

// run is the Run(args []string) int shape the teacher's pkg/cli/entry.go
// follows: parse flags, wire the pipeline, print a report, return an
// exit status instead of calling os.Exit directly so it stays testable.
func run(args []string) int {
	var dot bool
	var persist string
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-dot", "--dot":
			dot = true
		case "-persist", "--persist":
			i++
			if i >= len(args) {
				usage()
				return 2
			}
			persist = args[i]
		case "-h", "-help", "--help":
			usage()
			return 0
		default:
			rest = append(rest, args[i])
		}
	}
	if len(rest) != 3 {
		usage()
		return 2
	}
	fixturePath, className, methodName := rest[0], rest[1], rest[2]

	data, err := os.ReadFile(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rbjitc: %v\n", err)
		return 1
	}

	_, refl, err := jitfixture.Load(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rbjitc: %v\n", err)
		return 1
	}

	classID := host.NoClass
	for _, id := range refl.Subclasses(host.NoClass) {
		if refl.StringOf(refl.ClassName(id)) == className {
			classID = id
			break
		}
	}
	if classID == host.NoClass {
		fmt.Fprintf(os.Stderr, "rbjitc: class %q not found at top level\n", className)
		return 1
	}

	nameID := refl.Intern(methodName)
	me, ok := refl.LookupMethod(classID, nameID)
	if !ok || me.AST == nil {
		fmt.Fprintf(os.Stderr, "rbjitc: method %s#%s has no AST to compile\n", className, methodName)
		return 1
	}

	mgr, err := compiler.New(refl, jitfixture.NewPrimitiveCatalogue(refl.Interner), compiler.Options{PersistencePath: persist})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rbjitc: %v\n", err)
		return 1
	}
	defer mgr.Close()

	inst, err := mgr.Compile(me.AST, classID, nameID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rbjitc: %v\n", err)
		return 1
	}

	colorize := isatty.IsTerminal(os.Stdout.Fd())
	printHeader(inst, colorize)
	if dot {
		jitdebug.DumpDot(os.Stdout, inst.CFG, refl)
	} else {
		jitdebug.Dump(os.Stdout, inst.CFG, refl)
	}
	return 0
}

func printHeader(inst *compiler.Instance, colorize bool) {
	if colorize {
		fmt.Printf("\x1b[1mcompilation %s\x1b[0m (mutator=%v jitOnly=%v)\n", inst.ID, inst.Mutator, inst.JitOnly)
		return
	}
	fmt.Printf("compilation %s (mutator=%v jitOnly=%v)\n", inst.ID, inst.Mutator, inst.JitOnly)
}
