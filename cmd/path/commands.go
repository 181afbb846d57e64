package path

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dTrie/cmd/util"
	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [expr] [payload]",
		Short: "Inserts a path, an existing path gets its payload replaced",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			var payload []byte
			if len(args) == 2 {
				payload = []byte(args[1])
			}
			out, err := rpcStore.Insert(p, payload)
			if err != nil {
				return err
			}
			fmt.Printf("path=%s, result=%s\n", formatPath(p), out)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [expr]",
		Short: "Deletes a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			out, err := rpcStore.Delete(p)
			if err != nil {
				return err
			}
			fmt.Printf("path=%s, result=%s\n", formatPath(p), out)
			return nil
		},
	}
	lookupCmd = &cobra.Command{
		Use:   "lookup [expr]",
		Short: "Checks if a path is stored and reads its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			value, found, err := rpcStore.Lookup(p)
			if err != nil {
				return err
			}
			fmt.Printf("path=%s, found=%t, payload=%s\n", formatPath(p), found, value)
			return nil
		},
	}
	prefixCmd = &cobra.Command{
		Use:   "prefix [expr]",
		Short: "Lists all paths that start with the given symbols (all paths without argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix token.Path
			if len(args) == 1 {
				var err error
				if prefix, err = parsePath(args[0]); err != nil {
					return err
				}
			}
			cur, err := rpcStore.Prefix(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			return printEntries(cur, false)
		},
	}
	exploreCmd = &cobra.Command{
		Use:   "explore [expr]",
		Short: "Lists the symbols that follow the given symbols in the stored paths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix token.Path
			if len(args) == 1 {
				var err error
				if prefix, err = parsePath(args[0]); err != nil {
					return err
				}
			}
			cur, err := rpcStore.Explore(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			return printEntries(cur, false)
		},
	}
	matchCmd = &cobra.Command{
		Use:   "match [pattern]",
		Short: "Lists all paths matching a pattern together with the variable bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := parsePattern(args[0])
			if err != nil {
				return err
			}
			cur, err := rpcStore.Match(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			return printEntries(cur, true)
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all paths of the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := rpcStore.Clear()
			if err != nil {
				return err
			}
			fmt.Printf("removed=%d\n", removed)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{prefixCmd, exploreCmd, matchCmd} {
		cmd.Flags().Int("limit", 0, util.WrapString("Stop after this many results (0 lists all)"))
		cmd.Flags().Bool("payload", false, util.WrapString("Print the payload of every path"))
	}
}

// printEntries prints one line per cursor entry. Closing the cursor early (--limit) stops
// the query on the server.
func printEntries(cur db.Cursor, bindings bool) error {
	defer cur.Close()

	limit := viper.GetInt("limit")
	withPayload := viper.GetBool("payload")

	n := 0
	for (limit <= 0 || n < limit) && cur.Next() {
		e := cur.Entry()
		line := formatPath(e.Path)
		if bindings && len(e.Bindings) > 0 {
			line += "\t" + formatBindings(e.Bindings)
		}
		if withPayload {
			line += fmt.Sprintf("\tpayload=%s", e.Value)
		}
		fmt.Println(line)
		n++
	}
	if err := cur.Err(); err != nil {
		return err
	}
	fmt.Printf("(%d results)\n", n)
	return nil
}
