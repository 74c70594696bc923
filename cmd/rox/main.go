// rox CLI - validation, inspection, emulation injection and snapshots
// for L5X controller exports.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/roxplc/rox/emu"
	"github.com/roxplc/rox/l5x"
	"github.com/roxplc/rox/manifest"
	"github.com/roxplc/rox/snapshot"
	"github.com/roxplc/rox/store"
	"github.com/roxplc/rox/validate"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rox [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Works on RSLogix 5000 L5X controller exports.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  validate <file.l5x>   Run diagnostic rules and print findings\n")
		fmt.Fprintf(os.Stderr, "  inspect  <file.l5x>   Dump rung sequences and branch structure\n")
		fmt.Fprintf(os.Stderr, "  emu      <file.l5x>   Inject emulation logic and write the result\n")
		fmt.Fprintf(os.Stderr, "  snapshot <file.l5x>   Print the controller's canonical digest\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rox validate line1.l5x                 # Print findings\n")
		fmt.Fprintf(os.Stderr, "  rox validate -save line1.l5x           # Persist a run to the store\n")
		fmt.Fprintf(os.Stderr, "  rox inspect -routine Main line1.l5x    # Show one routine's structure\n")
		fmt.Fprintf(os.Stderr, "  rox emu -o line1_emu.l5x line1.l5x     # Write with emulation logic\n")
		fmt.Fprintf(os.Stderr, "  rox emu -remove -o out.l5x line1.l5x   # Strip generated logic\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fail("manifest: %v", err)
	}

	var cmdErr error
	switch cmd := flag.Arg(0); cmd {
	case "validate":
		cmdErr = runValidate(flag.Args()[1:], m)
	case "inspect":
		cmdErr = runInspect(flag.Args()[1:])
	case "emu":
		cmdErr = runEmu(flag.Args()[1:], m)
	case "snapshot":
		cmdErr = runSnapshot(flag.Args()[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		fail("%v", cmdErr)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadController(path string) (*l5x.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("no L5X file given")
	}
	return l5x.LoadFile(path)
}

func runValidate(args []string, m *manifest.Manifest) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	save := fs.Bool("save", false, "Persist the run to the findings store")
	dbPath := fs.String("db", "", "Findings database path (defaults to the manifest store path)")
	fs.Parse(args)

	doc, err := loadController(fs.Arg(0))
	if err != nil {
		return err
	}
	c := doc.Controller()

	opts := validate.DefaultOptions()
	var enabled func(string) bool
	if m != nil {
		if len(m.Validate.IgnoredOperands) > 0 {
			opts.IgnoredOperands = m.Validate.IgnoredOperands
		}
		enabled = m.RuleEnabled
	}

	findings := validate.Run(c, opts, enabled)
	for _, f := range findings {
		fmt.Println(f)
	}
	fmt.Printf("%d findings for %s\n", len(findings), c.Name())

	if *save {
		path := *dbPath
		if path == "" && m != nil {
			path = m.StorePath()
		}
		if path == "" {
			return fmt.Errorf("no findings database path; pass -db or add a rox.toml")
		}
		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()

		digest, err := snapshot.Digest(snapshot.Capture(c))
		if err != nil {
			return err
		}
		id, err := st.SaveRun(c.Name(), digest, findings)
		if err != nil {
			return err
		}
		fmt.Printf("saved run %s to %s\n", id, path)
	}
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	routine := fs.String("routine", "", "Only show the named routine")
	fs.Parse(args)

	doc, err := loadController(fs.Arg(0))
	if err != nil {
		return err
	}
	c := doc.Controller()

	fmt.Printf("Controller %s (%s)\n", c.Name(), c.Type)
	for _, p := range c.Programs() {
		for _, rt := range p.Routines() {
			if *routine != "" && rt.Name() != *routine {
				continue
			}
			fmt.Printf("\n%s/%s: %d rungs\n", p.Name(), rt.Name(), rt.RungCount())
			for _, r := range rt.Rungs() {
				fmt.Printf("  %3d  %s\n", r.Number(), r.Text())
				for _, el := range r.Sequence() {
					fmt.Printf("       %2d %-12s branch=%s level=%d\n",
						el.Position, el.Kind, orMain(el.BranchID), el.BranchLevel)
				}
				for _, w := range r.Warnings() {
					fmt.Printf("       warning: %s\n", w)
				}
			}
		}
	}
	return nil
}

func orMain(branchID string) string {
	if branchID == "" {
		return "main"
	}
	return branchID
}

func runEmu(args []string, m *manifest.Manifest) error {
	fs := flag.NewFlagSet("emu", flag.ExitOnError)
	out := fs.String("o", "", "Output L5X path (required)")
	remove := fs.Bool("remove", false, "Remove generated emulation logic instead of adding it")
	fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("emu requires -o <output.l5x>")
	}
	doc, err := loadController(fs.Arg(0))
	if err != nil {
		return err
	}
	c := doc.Controller()

	cfg := emu.Config{}
	controllerType := c.Type
	if m != nil {
		cfg.TargetProgram = m.Emulate.TargetProgram
		cfg.RoutineName = m.Emulate.RoutineName
		cfg.Marker = m.Emulate.CommentMarker
		if m.Emulate.ControllerType != "" {
			controllerType = m.Emulate.ControllerType
		}
	}

	g := emu.New(controllerType)
	var schema planExecutor
	if *remove {
		schema, err = g.Remove(c, cfg)
	} else {
		schema, err = g.Generate(c, cfg)
	}
	if err != nil {
		return err
	}
	if err := schema.Execute(); err != nil {
		return err
	}
	return doc.SaveFile(*out)
}

// planExecutor is what runEmu needs from a plan.Schema.
type planExecutor interface {
	Execute() error
}

func runSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	compare := fs.String("compare", "", "Compare against a previously written snapshot file")
	write := fs.String("write", "", "Write the canonical snapshot to a file")
	fs.Parse(args)

	doc, err := loadController(fs.Arg(0))
	if err != nil {
		return err
	}
	c := doc.Controller()

	snap := snapshot.Capture(c)
	digest, err := snapshot.Digest(snap)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", digest, c.Name())

	if *write != "" {
		data, err := snapshot.Marshal(snap)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*write, data, 0o644); err != nil {
			return err
		}
	}
	if *compare != "" {
		data, err := os.ReadFile(*compare)
		if err != nil {
			return err
		}
		prev, err := snapshot.Unmarshal(data)
		if err != nil {
			return err
		}
		prevDigest, err := snapshot.Digest(prev)
		if err != nil {
			return err
		}
		if prevDigest == digest {
			fmt.Println("unchanged")
		} else {
			fmt.Printf("changed (was %s)\n", prevDigest)
			os.Exit(3)
		}
	}
	return nil
}
