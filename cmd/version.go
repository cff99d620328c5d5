package cmd

import (
	"fmt"

	"github.com/merge-o-matic/mom/internal/debversion"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Compare and derive package version strings",
	RunE:  rootExec,
}

var versionCompareCmd = &cobra.Command{
	Use:   "compare <a> <b>",
	Short: "Print <, = or > depending on how a sorts against b",
	Args:  cobra.ExactArgs(2),
	RunE:  versionCompareExec,
}

var versionBaseCmd = &cobra.Command{
	Use:   "base <version>",
	Short: "Print the upstream version a derivative version was based on",
	Long: `Print the version with its revision cut down to the leading run of digits, for example
2:1.2.3-4ubuntu3endless1 becomes 2:1.2.3-4. A revision that does not start with a digit is dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: versionBaseExec,
}

var versionSortCmd = &cobra.Command{
	Use:   "sort <version>...",
	Short: "Print versions in ascending order, one per line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  versionSortExec,
}

func versionInit() {
	versionCmd.AddCommand(versionCompareCmd)
	versionCmd.AddCommand(versionBaseCmd)
	versionCmd.AddCommand(versionSortCmd)

	rootCmd.AddCommand(versionCmd)
}

func versionCompareExec(cmd *cobra.Command, args []string) error {
	c, err := debversion.CompareStrings(args[0], args[1])
	if err != nil {
		return err
	}

	symbol := map[int]string{-1: "<", 0: "=", 1: ">"}[c]
	fmt.Fprintln(cmd.OutOrStdout(), symbol)
	return nil
}

func versionBaseExec(cmd *cobra.Command, args []string) error {
	v, err := debversion.Parse(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), debversion.Base(v).String())
	return nil
}

func versionSortExec(cmd *cobra.Command, args []string) error {
	versions := make([]debversion.Version, 0, len(args))
	for _, a := range lo.Uniq(args) {
		v, err := debversion.Parse(a)
		if err != nil {
			return err
		}
		versions = append(versions, v)
	}

	debversion.Sort(versions)
	for _, v := range versions {
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	}
	return nil
}
