// Command reltablectl is a small demo/debug harness over the engine: it
// seeds a table, runs a handful of commands so their replies are
// visible, and optionally drops into an interactive line-at-a-time REPL.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alchemy-labs/reltable/pkg/catalog"
	"github.com/alchemy-labs/reltable/pkg/engine"
	"github.com/alchemy-labs/reltable/pkg/keycodec"
	"github.com/alchemy-labs/reltable/pkg/runtime"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var repl bool

	cmd := &cobra.Command{
		Use:   "reltablectl",
		Short: "Demo harness for the in-memory relational storage engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := runtime.NewLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			e := engine.New(log)
			if err := seedDemoData(e); err != nil {
				return err
			}

			runDemoCommands(e)

			if repl {
				runREPL(e, os.Stdin, os.Stdout)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repl, "repl", false, "read commands from stdin after the demo runs")
	return cmd
}

func seedDemoData(e *engine.Engine) error {
	fruit, err := e.CreateTable("fruit", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeString},
		{Name: "color", Type: keycodec.TypeString},
	}, catalog.NoColumn)
	if err != nil {
		return err
	}
	if _, err := e.CreateIndex("fruit_by_color", fruit.ID, 1, true); err != nil {
		return err
	}

	seed := map[string]string{
		"apple":  "red",
		"banana": "yellow",
		"grape":  "purple",
		"orange": "orange",
		"cherry": "red",
	}
	for pk, color := range seed {
		if _, err := e.Insert(fruit.ID, []any{[]byte(pk), []byte(color)}, engine.InsertOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func runDemoCommands(e *engine.Engine) {
	fmt.Println("Fruit colored red or yellow, looked up one at a time:")
	for _, pk := range []string{"apple", "banana", "mango"} {
		r, err := e.Dispatch([]string{"SELECT", "color", "FROM", "fruit", "WHERE", "pk", "=", pk})
		printReply(fmt.Sprintf("SELECT color FROM fruit WHERE pk=%s", pk), r, err)
	}

	fmt.Println("\nDeleting apple:")
	r, err := e.Dispatch([]string{"DELETE", "FROM", "fruit", "WHERE", "pk", "=", "apple"})
	printReply("DELETE FROM fruit WHERE pk=apple", r, err)

	r, err = e.Dispatch([]string{"SELECT", "color", "FROM", "fruit", "WHERE", "pk", "=", "apple"})
	printReply("SELECT color FROM fruit WHERE pk=apple", r, err)

	fmt.Printf("\ndirty counter: %d\n", e.DirtyCount())
}

func runREPL(e *engine.Engine, in *os.File, out *os.File) {
	fmt.Fprintln(out, "\nenter commands (blank line or EOF to quit):")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return
		}
		r, err := e.Dispatch(strings.Fields(line))
		printReply(line, r, err)
	}
}

func printReply(label string, r *runtime.Reply, err error) {
	if err != nil {
		fmt.Printf("%s -> error: %v\n", label, err)
		return
	}
	fmt.Printf("%s -> %s", label, r.Kind)
	for _, row := range r.Rows {
		v := keycodec.Decode(row)
		switch v.Type {
		case keycodec.TypeString:
			fmt.Printf(" %q", string(v.String))
		case keycodec.TypeFloat:
			fmt.Printf(" %v", v.Float)
		default:
			fmt.Printf(" %v", v.Int)
		}
	}
	fmt.Println()
}
