package cmd

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dhcgn/msg-partition/msgpart"
	"github.com/dhcgn/msg-partition/stats"
)

const manifestName = "attachments.csv"

// NewAttachmentsCommand returns the `attachments` subcommand, which lists the
// attachments of .msg files and optionally extracts them.
func NewAttachmentsCommand() *cobra.Command {
	var (
		outputDir string
		topN      int
	)

	cmd := &cobra.Command{
		Use:   "attachments [file.msg...]",
		Short: "List the attachments of .msg files and optionally extract them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			extensions := make(map[string]int)
			var rows [][]string

			for _, path := range args {
				dir := ""
				if outputDir != "" {
					dir = filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
				}
				infos, err := msgpart.ExtractAttachmentInfo(path, dir)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				fmt.Fprintf(out, "%s: %d attachment(s)\n", path, len(infos))
				printTable(out, infos)
				fmt.Fprintln(out)

				for _, info := range infos {
					ext := strings.ToLower(info.Extension)
					if ext == "" {
						ext = "(none)"
					}
					extensions[ext]++
					rows = append(rows, manifestRow(path, dir, info))
				}
			}

			if len(args) > 1 && len(extensions) > 0 {
				fmt.Fprintf(out, "Top %d extensions:\n", topN)
				stats.PrettyPrintTop(out, extensions, topN)
			}

			if outputDir == "" {
				return nil
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return err
			}
			manifest := filepath.Join(outputDir, manifestName)
			if err := saveManifest(manifest, rows); err != nil {
				return fmt.Errorf("error saving manifest: %w", err)
			}
			fmt.Fprintf(out, "\nAttachments saved to directory: %s\n", outputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to extract attachments into, one subdirectory per message")
	cmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top extensions to display")
	return cmd
}

func printTable(w io.Writer, infos []msgpart.AttachmentInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  FILENAME\tEXTENSION\tSIZE")
	for _, info := range infos {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", info.Filename, info.Extension, info.FileSize)
	}
	tw.Flush()
}

func manifestRow(source, dir string, info msgpart.AttachmentInfo) []string {
	sum := sha256.Sum256(info.Payload)
	saved := ""
	if dir != "" && len(info.Payload) > 0 {
		saved = filepath.Join(dir, info.Filename)
	}
	return []string{source, info.Filename, info.Extension, info.FileSize, hex.EncodeToString(sum[:]), saved}
}

func saveManifest(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Source", "Filename", "Extension", "FileSize", "SHA256", "SavedAs"}); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Close()
}
