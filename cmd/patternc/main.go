// cmd/patternc/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"patternlang/internal/pattern"
)

const VERSION = "0.1.0"

var BuildDate = time.Now().Format("2006-01-02")

// Command aliases mapping, same shorthand-to-full-name idiom as the
// scripting CLI this tool was split out of.
var commandAliases = map[string]string{
	"r": "run",
	"d": "dump",
	"c": "check",
	"v": "version",
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run holds the dispatch logic main() used to hold directly, split out
// so the testscript harness can register it as the patternc command
// (cmd/patternc/main_test.go), run by re-executing the test binary.
func run(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 0
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
		args[0] = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		if len(args) > 1 {
			showCommandHelp(args[1])
		} else {
			showUsage()
		}
		return 0
	}

	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		showVersion()
		return 0
	}

	switch cmd {
	case "run":
		if err := runCommand(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	case "dump":
		if err := dumpCommand(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	case "check":
		if err := checkCommand(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	default:
		suggestCommand(cmd)
	}
	return 0
}

func showUsage() {
	fmt.Println("patternc - Pattern Language Runtime")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  patternc run <pattern.hexpat> <data>    Evaluate a pattern against data and print its log  (alias: r)")
	fmt.Println("  patternc dump <pattern.hexpat> <data>   Evaluate and print the Pattern Tree                (alias: d)")
	fmt.Println("  patternc check <pattern.hexpat>         Parse a pattern file without evaluating it         (alias: c)")
	fmt.Println()
	fmt.Println("Flags (run/dump/check):")
	fmt.Println("  -be                 assume big-endian for unprefixed integers (default little-endian)")
	fmt.Println("  -base <addr>        base address of the data source (hex or decimal, default 0)")
	fmt.Println()
	fmt.Println("Help:")
	fmt.Println("  patternc help <command>    Show detailed help for a command")
	fmt.Println("  patternc --version         Show version")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  patternc d layout.hexpat firmware.bin")
	fmt.Println("  patternc run -be parser.hexpat sample.bin")
}

func showVersion() {
	fmt.Printf("patternc %s (built %s)\n", VERSION, BuildDate)
}

func showCommandHelp(command string) {
	switch command {
	case "run":
		fmt.Println("patternc run <pattern.hexpat> <data>")
		fmt.Println()
		fmt.Println("  Parses and evaluates pattern.hexpat against data, then prints the")
		fmt.Println("  evaluation's console log (no language construct writes to it, so it")
		fmt.Println("  is empty). Exits non-zero and prints a diagnostic if parsing or")
		fmt.Println("  evaluation fails; lexer and parser errors point a caret at the column.")
	case "dump":
		fmt.Println("patternc dump <pattern.hexpat> <data>")
		fmt.Println()
		fmt.Println("  Like run, but prints the resulting Pattern Tree instead of the log:")
		fmt.Println("  one line per pattern, offset/size/type/name, nested members indented")
		fmt.Println("  beneath their parent. Colorized when stdout is a terminal.")
	case "check":
		fmt.Println("patternc check <pattern.hexpat>")
		fmt.Println()
		fmt.Println("  Parses pattern.hexpat and reports syntax errors without evaluating it")
		fmt.Println("  against any data; useful for editor integrations and CI lint steps.")
	default:
		fmt.Printf("No help available for %q\n", command)
		showUsage()
	}
}

func suggestCommand(cmd string) {
	allCommands := []string{"run", "dump", "check", "help", "version"}

	fmt.Fprintf(os.Stderr, "Error: Unknown command %q\n", cmd)

	suggestions := findSimilarCommands(cmd, allCommands, 3)
	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\nDid you mean one of these?\n")
		for _, suggestion := range suggestions {
			alias := ""
			for a, full := range commandAliases {
				if full == suggestion {
					alias = fmt.Sprintf(" (alias: %s)", a)
					break
				}
			}
			fmt.Fprintf(os.Stderr, "  patternc %s%s\n", suggestion, alias)
		}
	}

	fmt.Fprintf(os.Stderr, "\nRun 'patternc help' to see all available commands\n")
	os.Exit(1)
}

func findSimilarCommands(input string, commands []string, maxDistance int) []string {
	var similar []string
	for _, cmd := range commands {
		if levenshteinDistance(input, cmd) <= maxDistance {
			similar = append(similar, cmd)
		}
	}
	return similar
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			matrix[i][j] = min3(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}
	return matrix[len(s1)][len(s2)]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}

// stdoutIsTerminal decides whether the tree dump should colorize its
// output; isatty keeps the dump plain when redirected to a file or a
// pipe (golden-test runs included).
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func defaultEndian(be bool) pattern.Endian {
	if be {
		return pattern.BigEndian
	}
	return pattern.LittleEndian
}
