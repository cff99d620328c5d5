package cmd

import (
	"fmt"
	"os"

	"github.com/merge-o-matic/mom/internal/changelog"
	"github.com/merge-o-matic/mom/internal/log"
	"github.com/merge-o-matic/mom/internal/utils"
	"github.com/spf13/cobra"
)

var changelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Work with package changelogs",
	RunE:  rootExec,
}

var changelogKnitCmd = &cobra.Command{
	Use:   "knit",
	Short: "Interleave a derivative's changelog entries into the upstream changelog",
	Long: `Interleave the entries of the LEFT changelog into the RIGHT one by version, newest first.
An entry present on both sides is taken from RIGHT. Knitting never conflicts.`,
	Args: cobra.NoArgs,
	RunE: changelogKnitExec,
}

func changelogInit() {
	changelogKnitCmd.Flags().String("left", "", "path to the derivative's changelog")
	_ = changelogKnitCmd.MarkFlagRequired("left")
	changelogKnitCmd.Flags().String("right", "", "path to the upstream changelog")
	_ = changelogKnitCmd.MarkFlagRequired("right")
	changelogKnitCmd.Flags().StringP("out", "o", "", "write the result to this file instead of stdout")

	changelogCmd.AddCommand(changelogKnitCmd)
	rootCmd.AddCommand(changelogCmd)
}

func changelogKnitExec(cmd *cobra.Command, args []string) error {
	leftPath, err := cmd.Flags().GetString("left")
	if err != nil {
		return err
	}
	rightPath, err := cmd.Flags().GetString("right")
	if err != nil {
		return err
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	for _, p := range []string{leftPath, rightPath} {
		if !utils.FileExists(p) {
			return fmt.Errorf("no changelog at %s", p)
		}
	}

	left, err := changelog.ReadFile(leftPath)
	if err != nil {
		return err
	}
	right, err := changelog.ReadFile(rightPath)
	if err != nil {
		return err
	}

	knitted := changelog.Knit(left, right)

	if outPath == "" {
		fmt.Fprint(cmd.OutOrStdout(), knitted.String())
		return nil
	}

	if err := utils.CreateDirectory(outPath); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, []byte(knitted.String()), 0o644); err != nil {
		return err
	}

	log.From(cmd.Context()).Successf("Knitted %d entries into %s", len(knitted.Entries), outPath)
	return nil
}
