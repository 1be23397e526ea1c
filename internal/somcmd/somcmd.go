// Package somcmd implements the som command's subcommands, dispatched
// through mainer's reflection-based flag parser the way nenuphar's own
// command package does: each exported method on Cmd whose signature
// matches (context.Context, mainer.Stdio, []string) error becomes a
// subcommand named after the method, lower-cased.
package somcmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mna/mainer"

	"github.com/kristofer/smogvm/pkg/astwalk"
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitives"
	"github.com/kristofer/smogvm/pkg/universe"
	"github.com/kristofer/smogvm/pkg/value"
	"github.com/kristofer/smogvm/pkg/vm"
)

const binName = "som"

var shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> <EntryClass> [<arg>...]
Run '%[1]s --help' for details.
`, binName)

var longUsage = fmt.Sprintf(`usage: %s [<option>...] run <EntryClass> [<arg>...]
       %[1]s [<option>...] repl
       %[1]s -h|--help
       %[1]s -v|--version

A class-based, pure-object language runtime.

The <command> can be one of:
       run                       Load EntryClass from the classpath and
                                 send it System>>initialize: with EntryClass
                                 followed by <arg>... packed as a SOM Array
                                 of Strings.
       repl                      Start an interactive read-eval-print loop.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --cp <dirs>               Colon-separated classpath searched for
                                 <ClassName>.som files.
       --engine <name>           Execution engine: bytecode (default) or
                                 ast.

More information on this runtime's object model and execution engines is
in this repository's design notes.
`, binName)

// Cmd is parsed by mainer.Parser from argv and dispatches to whichever
// exported method its Validate step resolves.
type Cmd struct {
	BuildVersion string

	Help    bool   `flag:"h,help"`
	Version bool   `flag:"v,version"`
	CP      string `flag:"cp"`
	Engine  string `flag:"engine"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}
	if cmdName == "run" && len(c.args[1:]) == 0 {
		return errors.New("run: an entry class name is required")
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: strings.ToUpper(binName) + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s\n", binName, c.BuildVersion)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return mainer.Failure
	}
	return mainer.Success
}

// buildCmds mirrors nenuphar's own reflection-based dispatch table: any
// exported method shaped like a subcommand handler is registered under
// its lower-cased name, so adding a new verb is adding a new method.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}

// Run boots a fresh universe, resolves className (the first positional
// argument) off the classpath when it isn't already one of the core or
// kernel classes, and sends System>>initialize: with className followed
// by the remaining arguments packed as a SOM Array of Strings - the one contract this
// runtime's interface promises its CLI.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) == 0 {
		return errors.New("run: an entry class name is required")
	}
	className, argv := args[0], args[1:]

	u, eng, err := bootUniverse(c.engineName())
	if err != nil {
		return err
	}

	classpath := splitClasspath(c.CP)
	if _, ok := u.Global(className); !ok {
		if err := loadClassByName(u, eng, classpath, className); err != nil {
			return err
		}
	}

	invoker := newInvoker(u, eng)

	argsVal := u.Heap.AllocArray(len(argv) + 1)
	hd, _ := argsVal.AsHandle(value.TagArray)
	arr := u.Heap.Arrays.Get(gc.Handle(hd))
	arr.Elements[0] = u.Heap.AllocString(className)
	for i, a := range argv {
		arr.Elements[i+1] = u.Heap.AllocString(a)
	}

	sysVal, _ := u.Global("system")
	_, err = invoker.Send(nil, sysVal, "initialize:", []value.Value{argsVal})
	return err
}

// Repl starts an interactive session: each line is compiled as the body
// of a throwaway method and sent to a fresh receiver, since every SOM
// expression needs a method context to run in and this runtime keeps no
// incremental top-level evaluator of its own.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	engineName := c.engineName()
	u, eng, err := bootUniverse(engineName)
	if err != nil {
		return err
	}
	invoker := newInvoker(u, eng)

	fmt.Fprintf(stdio.Stdout, "som REPL v%s (%s engine)\n", c.BuildVersion, engineName)
	fmt.Fprintln(stdio.Stdout, "Type ':help' for help, ':quit' or ':exit' to exit")
	fmt.Fprintln(stdio.Stdout)

	scanner := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "som> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case ":quit", ":exit":
			fmt.Fprintln(stdio.Stdout, "Goodbye!")
			return nil
		case ":help":
			printREPLHelp(stdio)
			continue
		case "":
			continue
		}
		evalReplExpr(stdio, u, invoker, line)
	}
	return scanner.Err()
}

func (c *Cmd) engineName() string {
	if c.Engine == "" {
		return "bytecode"
	}
	return c.Engine
}

func splitClasspath(cp string) []string {
	if cp == "" {
		return nil
	}
	return strings.Split(cp, ":")
}

func bootUniverse(engineName string) (*universe.Universe, universe.Engine, error) {
	u := universe.New()
	if err := u.Bootstrap(); err != nil {
		return nil, 0, fmt.Errorf("bootstrap error: %w", err)
	}
	eng := resolveEngine(engineName)
	if err := primitives.LoadKernel(u, eng); err != nil {
		return nil, 0, fmt.Errorf("kernel load error: %w", err)
	}
	return u, eng, nil
}

func resolveEngine(name string) universe.Engine {
	if name == "ast" {
		return universe.EngineAST
	}
	return universe.EngineBytecode
}

func newInvoker(u *universe.Universe, eng universe.Engine) objects.Invoker {
	if eng == universe.EngineAST {
		return astwalk.New(u)
	}
	return vm.New(u)
}

// loadClassByName searches classpath for <className>.som and installs
// it. Classpath discovery is intentionally bare: a flat directory scan,
// no archive formats, matching this runtime's text-file-only class file
// layout.
func loadClassByName(u *universe.Universe, eng universe.Engine, classpath []string, className string) error {
	for _, dir := range classpath {
		path := filepath.Join(dir, className+".som")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return u.LoadSource(string(data), eng)
	}
	return fmt.Errorf("class %s not found on classpath %v", className, classpath)
}

func evalReplExpr(stdio mainer.Stdio, u *universe.Universe, invoker objects.Invoker, line string) {
	src := "Doit = ( run = ( ^ " + line + " ) )"
	if err := u.LoadSource(src, universe.EngineBoth); err != nil {
		fmt.Fprintf(stdio.Stderr, "parse error: %v\n", err)
		return
	}
	classVal, _ := u.Global("Doit")
	h, _ := classVal.AsHandle(value.TagClass)
	recv := u.Heap.AllocInstance(gc.Handle(h), 0)
	result, err := invoker.Send(nil, recv, "run", nil)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "runtime error: %v\n", err)
		return
	}
	fmt.Fprintf(stdio.Stdout, "=> %s\n", result.String())
}

func printREPLHelp(stdio mainer.Stdio) {
	fmt.Fprintln(stdio.Stdout, "som REPL Help")
	fmt.Fprintln(stdio.Stdout)
	fmt.Fprintln(stdio.Stdout, "Commands:")
	fmt.Fprintln(stdio.Stdout, "  :help     Show this help message")
	fmt.Fprintln(stdio.Stdout, "  :quit     Exit the REPL")
	fmt.Fprintln(stdio.Stdout, "  :exit     Exit the REPL")
	fmt.Fprintln(stdio.Stdout)
	fmt.Fprintln(stdio.Stdout, "Enter a single SOM expression per line; it runs as the body")
	fmt.Fprintln(stdio.Stdout, "of a throwaway method and its result is printed.")
}
