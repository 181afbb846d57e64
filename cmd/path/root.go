package path

import (
	"github.com/ValentinKolb/dTrie/cmd/util"
	"github.com/ValentinKolb/dTrie/lib/sexpr"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/ValentinKolb/dTrie/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStore store.IStore

	// PathCommands represents the path store command group
	PathCommands = &cobra.Command{
		Use:   "path",
		Short: "Perform path store operations",
		Long: `Perform path store operations on one space of a dTrie server.

Paths and patterns are written as s-expressions, e.g. (edge a b) or (edge $x $*rest).
With --raw the argument is a flat, whitespace separated list of symbols where arity
headers are written as [n], e.g. "[3] edge a" to address every (edge a ...) path.`,
		PersistentPreRunE:  setupPathClient,
		PersistentPostRunE: closePathClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the path command
	util.SetupRPCClientFlags(PathCommands)

	key := "shard"
	PathCommands.PersistentFlags().Uint64(key, 100, util.WrapString("ID of the shard (space) to connect to"))

	key = "raw"
	PathCommands.PersistentFlags().Bool(key, false, util.WrapString("Read and print paths as flat symbol lists instead of s-expressions"))

	// Add subcommands
	PathCommands.AddCommand(insertCmd)
	PathCommands.AddCommand(deleteCmd)
	PathCommands.AddCommand(lookupCmd)
	PathCommands.AddCommand(prefixCmd)
	PathCommands.AddCommand(exploreCmd)
	PathCommands.AddCommand(matchCmd)
	PathCommands.AddCommand(clearCmd)
	PathCommands.AddCommand(infoCmd)
	PathCommands.AddCommand(uploadCmd)
	PathCommands.AddCommand(downloadCmd)
	PathCommands.AddCommand(perfTestCmd)
}

// setupPathClient initializes the RPC store client
func setupPathClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the store client
	rpcStore, err = client.NewRPCStore(
		shardId,
		*config,
		t,
		s,
	)

	return err
}

func closePathClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}

// --------------------------------------------------------------------------
// Argument parsing and output
// --------------------------------------------------------------------------

func parsePath(arg string) (token.Path, error) {
	if viper.GetBool("raw") {
		return sexpr.ParseRaw(arg)
	}
	return sexpr.ParsePath(arg)
}

func parsePattern(arg string) (token.Pattern, error) {
	if viper.GetBool("raw") {
		return sexpr.ParseRawPattern(arg)
	}
	return sexpr.ParsePattern(arg)
}

func formatPath(p token.Path) string {
	if viper.GetBool("raw") {
		return p.String()
	}
	return sexpr.Format(p)
}

func formatBindings(b token.Bindings) string {
	if viper.GetBool("raw") {
		return b.String()
	}
	return sexpr.FormatBindings(b)
}
