package cmd

import (
	"fmt"
	"os"

	"github.com/merge-o-matic/mom/internal/deb822"
	"github.com/merge-o-matic/mom/internal/fs"
	"github.com/merge-o-matic/mom/internal/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Read and edit control files without disturbing their formatting",
	Long: `Read and edit RFC822-style control files. Edits only touch the bytes of the field they change;
comments, blank lines and the layout of every other field are preserved.
The paragraph is chosen with --package; without it the first (source) paragraph is used.`,
	RunE: rootExec,
}

var controlGetCmd = &cobra.Command{
	Use:   "get <file> <field>",
	Short: "Print the value of a field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withParagraph(cmd, args[0], func(doc *deb822.Document, p *deb822.Paragraph) (*deb822.Document, error) {
			f, ok := p.Field(args[1])
			if !ok {
				return nil, fmt.Errorf("%w: %s", deb822.ErrFieldNotFound, args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.Value)
			return nil, nil
		})
	},
}

var controlPatchCmd = &cobra.Command{
	Use:   "patch <file> <field> <value>",
	Short: "Replace the value of an existing field",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withParagraph(cmd, args[0], func(doc *deb822.Document, p *deb822.Paragraph) (*deb822.Document, error) {
			return doc.Patch(p, args[1], args[2])
		})
	},
}

var controlRemoveCmd = &cobra.Command{
	Use:   "remove <file> <field>",
	Short: "Delete a field with all of its continuation lines",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withParagraph(cmd, args[0], func(doc *deb822.Document, p *deb822.Paragraph) (*deb822.Document, error) {
			return doc.RemoveField(p, args[1])
		})
	},
}

var controlAddCmd = &cobra.Command{
	Use:   "add <file> <field> <value>",
	Short: "Append a new field to the end of the paragraph",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withParagraph(cmd, args[0], func(doc *deb822.Document, p *deb822.Paragraph) (*deb822.Document, error) {
			return doc.AddField(p, args[1], args[2])
		})
	},
}

var controlRemoveParagraphCmd = &cobra.Command{
	Use:   "remove-paragraph <file>",
	Short: "Delete a whole paragraph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withParagraph(cmd, args[0], func(doc *deb822.Document, p *deb822.Paragraph) (*deb822.Document, error) {
			return doc.RemoveParagraph(p)
		})
	},
}

func controlInit() {
	for _, c := range []*cobra.Command{controlGetCmd, controlPatchCmd, controlRemoveCmd, controlAddCmd, controlRemoveParagraphCmd} {
		addParagraphFlags(c.Flags())
		controlCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{controlPatchCmd, controlRemoveCmd, controlAddCmd, controlRemoveParagraphCmd} {
		c.Flags().BoolP("in-place", "i", false, "write the result back to the file instead of printing it")
	}

	rootCmd.AddCommand(controlCmd)
}

func addParagraphFlags(flags *pflag.FlagSet) {
	flags.StringP("package", "p", "", "select the paragraph of this binary or source package")
}

// withParagraph parses file, selects the paragraph and applies edit. A nil
// document from edit means nothing is written.
func withParagraph(cmd *cobra.Command, file string, edit func(*deb822.Document, *deb822.Paragraph) (*deb822.Document, error)) error {
	logger := log.From(cmd.Context()).WithAssociatedFile(file)

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	doc, err := deb822.Parse(string(data))
	if err != nil {
		logger.Error("", zap.Error(err))
		return fmt.Errorf("failed to parse %s: %w", file, err)
	}

	pkg, err := cmd.Flags().GetString("package")
	if err != nil {
		return err
	}
	p, ok := doc.ParagraphFor(pkg)
	if !ok {
		if pkg == "" {
			return fmt.Errorf("%s has no paragraphs", file)
		}
		return fmt.Errorf("%s has no paragraph for package %s", file, pkg)
	}

	edited, err := edit(doc, p)
	if err != nil {
		return err
	}
	if edited == nil {
		return nil
	}

	inPlace, _ := cmd.Flags().GetBool("in-place")
	if !inPlace {
		fmt.Fprint(cmd.OutOrStdout(), edited.String())
		return nil
	}

	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	return fs.NewFileSystem("").WriteFile(file, []byte(edited.String()), info.Mode())
}
