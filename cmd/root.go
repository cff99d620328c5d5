package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/merge-o-matic/mom/internal/charm/styles"
	"github.com/merge-o-matic/mom/internal/config"
	"github.com/merge-o-matic/mom/internal/env"
	"github.com/merge-o-matic/mom/internal/log"
	"github.com/merge-o-matic/mom/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "mom",
	Short: "Carry a derivative distribution's package changes onto new upstream releases",
	Long: `mom merges the unpacked source trees of a package three ways:
	- BASE, the release both sides were derived from
	- LEFT, the derivative's modified tree
	- RIGHT, the new upstream release
It also exposes the building blocks it merges with: version comparison, control file editing and changelog knitting.
`,
	RunE: rootExec,
}

var (
	l         = log.New().WithLevel(log.LevelInfo)
	setupOnce sync.Once
)

func init() {
	// We want our commands to be sorted in defined order, not alphabetically
	cobra.EnableCommandSorting = false
	if err := config.Load(); err != nil {
		l.Error("", zap.Error(err))
		os.Exit(1)
	}
}

func Init(version, artifactArch string) {
	rootCmd.PersistentFlags().String("logLevel", string(log.LevelInfo), fmt.Sprintf("the log level (available options: [%s])", strings.Join(log.Levels, ", ")))

	mergeInit()
	batchInit()
	versionInit()
	controlInit()
	changelogInit()
}

func CmdForTest(version, artifactArch string) *cobra.Command {
	setupRootCmd(version, artifactArch)

	return rootCmd
}

func Execute(version, artifactArch string) {
	setupRootCmd(version, artifactArch)

	if err := rootCmd.Execute(); err != nil {
		l.Error("", zap.Error(err))
		l.WithInteractiveOnly().PrintfStyled(styles.DimmedItalic, "Run '%s --help' for usage.\n", rootCmd.CommandPath())
		os.Exit(1)
	}
}

func setupRootCmd(version, artifactArch string) {
	setupOnce.Do(func() {
		rootCmd.Version = version + "\n" + artifactArch
		rootCmd.SilenceErrors = true
		rootCmd.SilenceUsage = true
		rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			if err := setLogLevel(cmd); err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid configuration in %s: %w", config.Dir(), err)
			}
			return config.CheckMinVersion(version)
		}

		Init(version, artifactArch)
	})
}

func setLogLevel(cmd *cobra.Command) error {
	logLevel, err := cmd.Flags().GetString("logLevel")
	if err != nil {
		return err
	}
	if !slices.Contains(log.Levels, logLevel) {
		return fmt.Errorf("log level must be one of: %s", strings.Join(log.Levels, ", "))
	}

	cl := l.WithLevel(log.Level(logLevel))
	if !utils.IsInteractive() && !env.IsGithubAction() {
		cl = cl.WithFormatter(log.PrefixedFormatter)
	}
	ctx := log.With(cmd.Context(), cl)
	cmd.SetContext(ctx)

	return nil
}

func rootExec(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}
