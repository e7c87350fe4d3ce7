// Javelin CLI - runs class images on the Javelin execution engine.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/javelin-vm/javelin/classfile"
	"github.com/javelin-vm/javelin/config"
	"github.com/javelin-vm/javelin/vm"
)

func main() {
	classpath := flag.String("cp", "", "Classpath directories (colon-separated, overrides javelin.toml)")
	maxFrames := flag.Int("max-frames", 0, "Call-stack depth limit (overrides javelin.toml)")
	verbosity := flag.Int("v", 0, "Log verbosity (0 = quiet)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: javelin [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run <class> [args...]   Run a class's main method\n")
		fmt.Fprintf(os.Stderr, "  dump <file.jbc>         Print a class image's contents\n")
		fmt.Fprintf(os.Stderr, "  index                   Rebuild the classpath index\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  javelin run Main                 # Run Main.main from ./Main.jbc\n")
		fmt.Fprintf(os.Stderr, "  javelin -cp build run app/Main   # Run with an explicit classpath\n")
		fmt.Fprintf(os.Stderr, "  javelin dump build/app/Main.jbc  # Inspect a class image\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	commonlog.Configure(effectiveVerbosity(*verbosity, cfg), nil)
	if *classpath != "" {
		cfg.Classpath.Dirs = strings.Split(*classpath, ":")
		cfg.Dir = ""
	}
	if *maxFrames > 0 {
		cfg.Engine.MaxFrames = *maxFrames
	}

	switch flag.Arg(0) {
	case "run":
		if flag.NArg() < 2 {
			fmt.Fprintf(os.Stderr, "Error: run needs a class name\n")
			os.Exit(2)
		}
		os.Exit(cmdRun(cfg, flag.Arg(1), flag.Args()[2:]))
	case "dump":
		if flag.NArg() != 2 {
			fmt.Fprintf(os.Stderr, "Error: dump needs exactly one image file\n")
			os.Exit(2)
		}
		os.Exit(cmdDump(flag.Arg(1)))
	case "index":
		os.Exit(cmdIndex(cfg))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}
}

// effectiveVerbosity prefers an explicit -v flag over the javelin.toml
// logging section.
func effectiveVerbosity(flagV int, cfg *config.Config) int {
	if flagV > 0 {
		return flagV
	}
	return cfg.Logging.Verbosity
}

// cmdRun executes <class>.main(args) and maps the outcome to an exit
// code: 0 on normal completion, 1 on an uncaught throwable or any
// engine/load error.
func cmdRun(cfg *config.Config, className string, args []string) int {
	loader := classfile.NewLoader(cfg.ClasspathDirs())
	if path := cfg.IndexPath(); path != "" {
		ix, err := classfile.OpenIndex(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: classpath index unavailable: %v\n", err)
		} else {
			defer ix.Close()
			loader.UseIndex(ix)
		}
	}

	engine := vm.New(loader)
	engine.MaxFrames = cfg.Engine.MaxFrames

	// Class names on the command line use dot form.
	internal := strings.ReplaceAll(className, ".", "/")
	err := engine.RunMain(internal, args)
	if err == nil {
		return 0
	}

	var uncaught *vm.UncaughtThrowable
	if errors.As(err, &uncaught) {
		fmt.Fprintf(os.Stderr, "Exception in thread \"main\" %s\n", throwableHeader(uncaught))
		for _, entry := range uncaught.Trace {
			fmt.Fprintf(os.Stderr, "\t%s\n", entry)
		}
		return 1
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func throwableHeader(u *vm.UncaughtThrowable) string {
	name := strings.ReplaceAll(u.ClassName, "/", ".")
	if u.Message == "" {
		return name
	}
	return name + ": " + u.Message
}

// cmdDump prints a decoded class image.
func cmdDump(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cf, err := classfile.Unmarshal(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	kind := "class"
	if cf.Interface {
		kind = "interface"
	}
	fmt.Printf("%s %s\n", kind, cf.Name)
	if cf.Superclass != "" {
		fmt.Printf("  extends    %s\n", cf.Superclass)
	}
	for _, in := range cf.Interfaces {
		fmt.Printf("  implements %s\n", in)
	}

	if len(cf.Fields) > 0 {
		fmt.Printf("\nfields:\n")
		for _, f := range cf.Fields {
			mod := ""
			if f.Static {
				mod = "static "
			}
			fmt.Printf("  %s%s %s\n", mod, f.Name, f.Descriptor)
		}
	}

	fmt.Printf("\nmethods:\n")
	for _, m := range cf.Methods {
		var mods []string
		if m.Static {
			mods = append(mods, "static")
		}
		if m.Native {
			mods = append(mods, "native")
		}
		if m.Abstract {
			mods = append(mods, "abstract")
		}
		mod := strings.Join(mods, " ")
		if mod != "" {
			mod += " "
		}
		fmt.Printf("  %s%s%s\n", mod, m.Name, m.Descriptor)
		if len(m.Code) > 0 {
			fmt.Printf("    code: %d bytes, max_stack=%d, max_locals=%d\n",
				len(m.Code), m.MaxStack, m.MaxLocals)
		}
		for _, h := range m.ExceptionTable {
			catch := h.CatchType
			if catch == "" {
				catch = "<any>"
			}
			fmt.Printf("    handler: [%d, %d) -> %d catch %s\n",
				h.StartPC, h.EndPC, h.HandlerPC, catch)
		}
	}

	if len(cf.Pool) > 0 {
		fmt.Printf("\nconstant pool:\n")
		for i, k := range cf.Pool {
			fmt.Printf("  #%-3d %s\n", i+1, describeConstant(&k))
		}
	}
	return 0
}

func describeConstant(k *classfile.Constant) string {
	switch k.Kind {
	case classfile.ConstUnused:
		return "(wide-entry placeholder)"
	case classfile.ConstInt:
		return fmt.Sprintf("int     %d", k.Int)
	case classfile.ConstLong:
		return fmt.Sprintf("long    %d", k.Long)
	case classfile.ConstFloat:
		return fmt.Sprintf("float   %g", k.Float)
	case classfile.ConstDouble:
		return fmt.Sprintf("double  %g", k.Double)
	case classfile.ConstString:
		return fmt.Sprintf("string  %q", k.Str)
	case classfile.ConstClass:
		return fmt.Sprintf("class   %s", k.ClassName)
	case classfile.ConstFieldRef:
		return fmt.Sprintf("field   %s.%s %s", k.ClassName, k.Name, k.Descriptor)
	case classfile.ConstMethodRef:
		return fmt.Sprintf("method  %s.%s%s", k.ClassName, k.Name, k.Descriptor)
	case classfile.ConstInterfaceMethodRef:
		return fmt.Sprintf("imethod %s.%s%s", k.ClassName, k.Name, k.Descriptor)
	}
	return fmt.Sprintf("kind(%d)", k.Kind)
}

// cmdIndex rebuilds the classpath index database.
func cmdIndex(cfg *config.Config) int {
	path := cfg.IndexPath()
	if path == "" {
		fmt.Fprintf(os.Stderr, "Error: no classpath.index configured in javelin.toml\n")
		return 1
	}
	ix, err := classfile.OpenIndex(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer ix.Close()
	if err := ix.Rebuild(cfg.ClasspathDirs()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Indexed classpath %v into %s\n", cfg.ClasspathDirs(), path)
	return 0
}
