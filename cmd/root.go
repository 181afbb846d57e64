package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ValentinKolb/dTrie/cmd/path"
	"github.com/ValentinKolb/dTrie/cmd/serve"
	"github.com/ValentinKolb/dTrie/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dtrie",
		Short: "path-indexed trie store",
		Long: fmt.Sprintf(`dTrie (v%s)

A trie store for symbolic token sequences written in Go. Paths are stored in a
copy-on-write trie and can be looked up exactly, enumerated by prefix or matched
against patterns with variables and wildcards. Spaces can be replicated with RAFT.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dTrie",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dTrie v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(path.PathCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix, http)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
