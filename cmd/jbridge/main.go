package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/zboralski/jbridge/internal/bridge"
	"github.com/zboralski/jbridge/internal/jni"
	"github.com/zboralski/jbridge/internal/jvm"
	glog "github.com/zboralski/jbridge/internal/log"
	"github.com/zboralski/jbridge/internal/proxy"
	"github.com/zboralski/jbridge/internal/trace"
	"github.com/zboralski/jbridge/internal/ui/colorize"
	"github.com/zboralski/jbridge/internal/ui/inspect"
)

var (
	verbose   bool
	quiet     bool
	showTrace bool
	echo      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jbridge",
		Short: "Script Java heaps from JavaScript through JNI field proxies",
		Long: `jbridge exposes Java objects and classes to JavaScript. Every public Java
field becomes a script property; reads and writes go through JNI with the
field's declared type, and Java exceptions surface as script exceptions.

The Java side is an in-process heap described by a YAML file.

Examples:
  jbridge run heap.yaml move.js            # Run a script against the heap
  jbridge run heap.yaml move.js --trace    # Show every JNI call
  jbridge fields heap.yaml Point           # List a class's public fields
  jbridge inspect heap.yaml p              # Browse an object's fields`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (result + stats only)")

	runCmd := &cobra.Command{
		Use:   "run <heap.yaml> <script.js>",
		Short: "Run a script with every heap object and class bound",
		Args:  cobra.ExactArgs(2),
		RunE:  runScript,
	}
	runCmd.Flags().BoolVar(&showTrace, "trace", false, "print the JNI call trace")
	runCmd.Flags().BoolVar(&echo, "echo", false, "print the highlighted script before running it")

	fieldsCmd := &cobra.Command{
		Use:   "fields <heap.yaml> <class>",
		Short: "List the public fields of a class",
		Args:  cobra.ExactArgs(2),
		RunE:  listFields,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <heap.yaml> <object-id>",
		Short: "Browse the fields of a heap object",
		Args:  cobra.ExactArgs(2),
		RunE:  inspectObject,
	}

	rootCmd.AddCommand(runCmd, fieldsCmd, inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadHeap(path string) (*jvm.VM, *jvm.Heap, error) {
	glog.Init(verbose)
	vm := jvm.New(jvm.WithLogger(glog.L))
	heap, err := jvm.LoadHeapFile(vm, path)
	if err != nil {
		return nil, nil, err
	}
	return vm, heap, nil
}

func runScript(cmd *cobra.Command, args []string) error {
	heapPath, scriptPath := args[0], args[1]
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	vm, heap, err := loadHeap(heapPath)
	if err != nil {
		return err
	}

	out := newOutputWriter(os.Stdout)
	defer out.Close()

	collector := &traceCollector{}
	vm.OnCall = func(seq uint64, category, name, detail string) {
		e := trace.NewEvent(seq, category, name, detail)
		trace.DefaultEnricher(e)
		collector.Add(e)
		if showTrace && !quiet {
			out.Line(colorize.TraceLine(seq, name, detail, e.Tags.Strings()))
		}
	}

	if !quiet {
		printHeader(out, heapPath, scriptPath, heap)
		if echo {
			for _, line := range strings.Split(strings.TrimRight(colorize.Script(string(src)), "\n"), "\n") {
				out.Line("  " + line)
			}
			out.Line("")
		}
	}

	sess := bridge.New(vm.Env(), jni.NewMethodCache(), bridge.WithOutput(out), bridge.WithLogger(glog.L))
	if err := sess.BindHeap(vm, heap); err != nil {
		sess.Close()
		return err
	}
	// References pinned by the bindings themselves are not counted.
	pinned := vm.GlobalRefs()

	v, runErr := sess.Run(filepath.Base(scriptPath), string(src))
	if runErr == nil && v != nil && !goja.IsUndefined(v) {
		out.Line(colorize.Detail("=> ") + inspect.FormatValue(v))
	}
	live := vm.GlobalRefs() - pinned
	if err := sess.Close(); err != nil && runErr == nil {
		runErr = err
	}

	printStats(out, collector, live, vm, runErr)
	return runErr
}

func printHeader(out *outputWriter, heapPath, scriptPath string, heap *jvm.Heap) {
	out.Line("")
	out.Line(fmt.Sprintf("%s jbridge ─ JavaScript over JNI field proxies", colorize.Header("▶")))
	out.Line(fmt.Sprintf("  %s %s  %s %s",
		colorize.Detail("Heap:"), relPath(heapPath),
		colorize.Detail("Script:"), relPath(scriptPath)))
	out.Line(fmt.Sprintf("  %s %s  %s %s",
		colorize.Detail("Classes:"), colorize.FuncName(fmt.Sprint(len(heap.Classes))),
		colorize.Detail("Objects:"), colorize.FuncName(fmt.Sprint(len(heap.IDs)))))
	out.Line("")
}

func relPath(p string) string {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, p); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return p
}

func printStats(out *outputWriter, tc *traceCollector, globals int, vm *jvm.VM, err error) {
	line := colorize.Border("───────────────────────────────────────── ") +
		fmt.Sprintf("%s jni  %s get  %s set  %s globals",
			colorize.FuncName(fmt.Sprint(tc.Len())),
			colorize.FuncName(fmt.Sprint(tc.count(trace.FieldGet))),
			colorize.FuncName(fmt.Sprint(tc.count(trace.FieldSet))),
			colorize.FuncName(fmt.Sprint(globals)))
	if n := vm.Misuse(); n > 0 {
		line += "  " + colorize.Error(fmt.Sprintf("%d misuse", n))
	}
	if n := vm.LocalRefs(); n > 0 {
		line += "  " + colorize.Error(fmt.Sprintf("%d leaked locals", n))
	}
	if err != nil {
		line += "  " + colorize.Error(err.Error())
	}
	out.Line("")
	out.Line(line)
}

// resolveClass accepts a binary class name or the simple name of a class
// declared in the heap file.
func resolveClass(heap *jvm.Heap, name string) (string, error) {
	if strings.Contains(name, ".") {
		return name, nil
	}
	var found []string
	for _, c := range heap.Classes {
		if bridge.SimpleName(c) == name {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("no class named %s in heap", name)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("class name %s is ambiguous: %s", name, strings.Join(found, ", "))
}

func listFields(cmd *cobra.Command, args []string) error {
	vm, heap, err := loadHeap(args[0])
	if err != nil {
		return err
	}
	className, err := resolveClass(heap, args[1])
	if err != nil {
		return err
	}
	f := proxy.NewFactory(vm.Env(), goja.New(), jni.NewMethodCache(), glog.L)
	defer f.Close()

	infos, err := f.Describe(className)
	if err != nil {
		return err
	}
	rows := make([][]string, len(infos))
	for i, fi := range infos {
		static := ""
		if fi.Static {
			static = "static"
		}
		rows[i] = []string{fi.Name, fi.Tag.String(), static, fi.Tag.Expected()}
	}
	if !quiet {
		fmt.Println(colorize.Header(className))
	}
	fmt.Println(inspect.FieldTable([]string{"Field", "Type", "", "Accepts"}, rows))
	return nil
}

func inspectObject(cmd *cobra.Command, args []string) error {
	vm, heap, err := loadHeap(args[0])
	if err != nil {
		return err
	}
	obj, ok := heap.Object(args[1])
	if !ok {
		return fmt.Errorf("no object %q in heap", args[1])
	}
	f := proxy.NewFactory(vm.Env(), goja.New(), jni.NewMethodCache(), glog.L)
	defer f.Close()

	ref := vm.NewLocal(obj)
	p, err := f.Object(ref)
	vm.Env().DeleteLocalRef(ref)
	if err != nil {
		return err
	}
	return inspect.Run(p)
}
