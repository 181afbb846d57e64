package path

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/dTrie/cmd/util"
	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/sexpr"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	uploadCmd = &cobra.Command{
		Use:   "upload [file|-]",
		Short: "Inserts every expression of a file (or stdin) as one path",
		Long: `Inserts every top-level s-expression of a file as one path. With --raw every
non-empty line is read as a flat path. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(args[0])
			if err != nil {
				return err
			}
			paths, err := parseUpload(src)
			if err != nil {
				return err
			}

			var inserted, replaced atomic.Int64
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(1, viper.GetInt("parallel")))
			for _, p := range paths {
				if ctx.Err() != nil {
					break
				}
				g.Go(func() error {
					out, err := rpcStore.Insert(p, nil)
					if err != nil {
						return fmt.Errorf("insert %s: %w", formatPath(p), err)
					}
					if out == db.OutcomeInserted {
						inserted.Add(1)
					} else {
						replaced.Add(1)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			fmt.Printf("uploaded=%d, inserted=%d, existing=%d\n", len(paths), inserted.Load(), replaced.Load())
			return nil
		},
	}
	downloadCmd = &cobra.Command{
		Use:   "download [file|-]",
		Short: "Writes every path of the space as one expression per line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out io.Writer = os.Stdout
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			cur, err := rpcStore.Prefix(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer cur.Close()

			w := bufio.NewWriter(out)
			n := 0
			for cur.Next() {
				if _, err := fmt.Fprintln(w, formatPath(cur.Entry().Path)); err != nil {
					return err
				}
				n++
			}
			if err := cur.Err(); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "downloaded=%d\n", n)
			return nil
		},
	}
)

func init() {
	uploadCmd.Flags().Int("parallel", 8, util.WrapString("Number of inserts in flight"))
}

func readInput(name string) (string, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	return string(data), err
}

// parseUpload returns the paths of an upload, one per expression or one per raw line
func parseUpload(src string) ([]token.Path, error) {
	if !viper.GetBool("raw") {
		return sexpr.ParsePaths(src)
	}
	var paths []token.Path
	for i, line := range strings.Split(src, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := sexpr.ParseRaw(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
