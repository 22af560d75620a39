package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"patternlang/internal/parse"
	"patternlang/internal/pattern"
	"patternlang/internal/runtime"
	"patternlang/internal/source"
	"patternlang/internal/token"
)

// cliFlags is the small flag set run/dump/check share: big-endian
// default and a base address, parsed by hand the way the teacher's own
// commands package scans os.Args rather than pulling in a flag-parsing
// dependency for a handful of switches.
type cliFlags struct {
	be   bool
	base uint64
	rest []string
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-be":
			f.be = true
		case args[i] == "-base":
			if i+1 >= len(args) {
				return f, fmt.Errorf("-base requires an address argument")
			}
			i++
			addr, err := strconv.ParseUint(strings.TrimPrefix(args[i], "0x"), hexOrDec(args[i]), 64)
			if err != nil {
				return f, fmt.Errorf("invalid -base address %q: %w", args[i], err)
			}
			f.base = addr
		default:
			f.rest = append(f.rest, args[i])
		}
	}
	return f, nil
}

func hexOrDec(s string) int {
	if strings.HasPrefix(s, "0x") {
		return 16
	}
	return 10
}

func loadSource(path string, base uint64) (source.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return source.NewMemorySource(data).WithBaseAddress(base), nil
}

func readPatternFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func newRuntime(be bool) *runtime.Runtime {
	endian := defaultEndian(be)
	return runtime.New(runtime.Options{DefaultEndian: endian, WorkerCount: 1})
}

func runCommand(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(flags.rest) != 2 {
		return fmt.Errorf("usage: patternc run [-be] [-base <addr>] <pattern.hexpat> <data>")
	}
	patternFile, dataFile := flags.rest[0], flags.rest[1]

	text, err := readPatternFile(patternFile)
	if err != nil {
		return err
	}
	src, err := loadSource(dataFile, flags.base)
	if err != nil {
		return err
	}

	rt := newRuntime(flags.be)
	defer rt.Close()
	rt.SetDataSource(src)

	res, err := rt.Execute(patternFile, text, nil)
	if err != nil {
		return err
	}
	for _, entry := range res.Log {
		fmt.Printf("[%s] %s\n", entry.Level, entry.Message)
	}
	return nil
}

func dumpCommand(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(flags.rest) != 2 {
		return fmt.Errorf("usage: patternc dump [-be] [-base <addr>] <pattern.hexpat> <data>")
	}
	patternFile, dataFile := flags.rest[0], flags.rest[1]

	text, err := readPatternFile(patternFile)
	if err != nil {
		return err
	}
	src, err := loadSource(dataFile, flags.base)
	if err != nil {
		return err
	}

	rt := newRuntime(flags.be)
	defer rt.Close()
	rt.SetDataSource(src)

	res, err := rt.Execute(patternFile, text, nil)
	if err != nil {
		return err
	}

	f := pattern.NewFormatter()
	f.Colorize = stdoutIsTerminal()
	fmt.Print(f.Format(res.Patterns))

	for name, sec := range runtime.GetSections(res) {
		fmt.Printf("section %q [%s]:\n", name, byteLen(len(sec.Data)))
		fmt.Print(indent(f.Format(sec.Patterns)))
	}
	return nil
}

func checkCommand(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(flags.rest) != 1 {
		return fmt.Errorf("usage: patternc check <pattern.hexpat>")
	}
	patternFile := flags.rest[0]

	text, err := readPatternFile(patternFile)
	if err != nil {
		return err
	}

	scanner := token.NewScanner(patternFile, text)
	tokens, err := scanner.ScanTokens()
	if err != nil {
		return err
	}
	if _, err := parse.New(patternFile, text, tokens).Parse(); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", patternFile)
	return nil
}

func byteLen(n int) string {
	return fmt.Sprintf("%d bytes", n)
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n") + "\n"
}
