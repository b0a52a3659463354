package cmd

import (
	"context"

	"iconfont/pkg/logging"
	"iconfont/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	debug  bool
	logger = zap.NewNop()
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "iconfont",
	Short: "iconfont compiles directories of SVG icons into icon fonts",
	Long: `iconfont collects SVG icons, runs fontcustom once per icon directory and
writes the generated fonts (eot, svg, woff, ttf) to a destination directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.Setup(debug, version.AppName, version.Get().Version)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync(logger)
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}
