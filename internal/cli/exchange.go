package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/compgraph/pkg/document"
	"github.com/matzehuels/compgraph/pkg/dot"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	cgio "github.com/matzehuels/compgraph/pkg/io"
)

// =============================================================================
// export
// =============================================================================

type exportOptions struct {
	output string
	format string
	pick   bool
}

func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export [ROOT...]",
		Short: "Export the subgraph under the given roots",
		Long: `Export every component reachable from the roots to a document.
Components reached more than once, including through cycles, are written in
full the first time and as references afterwards.

The encoding follows --format, then the output extension, then export.format
from config.`,
		Example: `  compgraph export 6f1c... -o projects.json
  compgraph export --pick -o picked.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				return c.runExport(ctx, ws, args, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "encoding: json or yaml")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "choose roots interactively")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, ws *workspace, ids []string, opts exportOptions) error {
	if opts.pick && len(ids) == 0 {
		all, err := ws.graph.List(ctx)
		if err != nil {
			return err
		}
		if ids, err = pickRoots(all); err != nil {
			return err
		}
		if len(ids) == 0 {
			printDetail("No selection made")
			return nil
		}
	}
	if len(ids) == 0 {
		return cerrors.New(cerrors.ErrCodeInvalidInput, "no roots given (pass ids or --pick)")
	}

	enc, err := c.exportEncoding(opts)
	if err != nil {
		return err
	}
	roots, err := ws.lookup(ctx, ids)
	if err != nil {
		return err
	}

	exp := cgio.NewExporter(ws.graph)
	if opts.output == "" {
		return exp.Export(ctx, roots, stdout, enc)
	}

	prog := newProgress(loggerFromContext(ctx))
	if err := exp.ExportFileAs(ctx, roots, opts.output, enc); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Exported %d roots", len(roots)))
	printSuccess("Exported %d roots", len(roots))
	printFile(opts.output)
	return nil
}

func (c *CLI) exportEncoding(opts exportOptions) (document.Encoding, error) {
	switch {
	case opts.format != "":
		return document.ParseEncoding(opts.format)
	case opts.output != "":
		return document.EncodingForPath(opts.output), nil
	default:
		return c.cfg.Encoding(), nil
	}
}

// =============================================================================
// import
// =============================================================================

type importOptions struct {
	into   string
	owner  string
	noSave bool
	json   bool
}

func (c *CLI) importCommand() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import documents under a target component",
		Long: `Rebuild the content of each document as new components. Everything from one
run is grouped under an "imported on <time>" container appended to the
target, with one container per file recording where it came from.

Unreadable files and components that cannot be built are reported and
skipped; the rest of the import goes ahead.`,
		Example: `  compgraph import projects.json --into 6f1c...
  compgraph import a.json b.yaml --into 6f1c... --owner alice --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				return c.runImport(ctx, ws, args, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.into, "into", "", "target component id (required)")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "owner for imported components (default: import.owner from config, else as exported)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "build without saving")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("into")

	return cmd
}

func (c *CLI) runImport(ctx context.Context, ws *workspace, files []string, opts importOptions) error {
	target, err := ws.graph.Lookup(ctx, opts.into)
	if err != nil {
		return err
	}
	owner := opts.owner
	if owner == "" {
		owner = c.cfg.Import.Owner
	}

	imp := cgio.NewImporter(ws.graph, cgio.ImportOptions{SkipSave: opts.noSave})

	var report *cgio.Report
	if opts.json {
		report = imp.Import(ctx, files, owner, target)
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIO, err, "write report")
		}
	} else {
		spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Importing %d files...", len(files)))
		spinner.Start()
		report = imp.Import(ctx, files, owner, target)
		spinner.Stop()
		printReport(report)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := report.Err(); err != nil {
		return err
	}
	if report.Succeeded() == 0 {
		return cerrors.New(cerrors.ErrCodeInvalidInput, "no file could be imported")
	}
	return nil
}

func printReport(r *cgio.Report) {
	for _, f := range r.Files {
		if f.OK() {
			printSuccess("%s %s", filepath.Base(f.File), StyleDim.Render(fmt.Sprintf("(%d top-level)", f.TopLevelCount)))
			continue
		}
		printError("%s: %s %s", filepath.Base(f.File), strings.ReplaceAll(string(f.Status), "_", " "), StyleDim.Render(f.Message))
	}
	printStats(
		stat(r.NodesCreated, "created"),
		stat(r.NodesReused, "reused"),
		stat(r.CycleRefs, "cycles"),
		stat(r.Saved, "saved"),
		stat(len(r.Warnings), "warnings"),
	)
	for _, w := range r.Warnings {
		printWarning("%s", w.String())
	}
	for _, e := range r.Errors {
		printError("%s", e.String())
	}
	if r.Session != "" {
		printKeyValue("session", r.Session)
	}
}

// =============================================================================
// dot
// =============================================================================

func (c *CLI) dotCommand() *cobra.Command {
	var output string
	var detailed bool

	cmd := &cobra.Command{
		Use:   "dot ROOT...",
		Short: "Render the subgraph under the given roots as Graphviz",
		Long: `Write the subgraph reachable from the roots in DOT format, or as SVG when
the output file ends in .svg.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ctx context.Context, ws *workspace) error {
				roots, err := ws.lookup(ctx, args)
				if err != nil {
					return err
				}
				src, err := dot.ToDOT(ctx, roots, dot.Options{Detailed: detailed})
				if err != nil {
					return err
				}
				if output == "" {
					_, err := fmt.Fprint(stdout, src)
					return err
				}

				data := []byte(src)
				if strings.EqualFold(filepath.Ext(output), ".svg") {
					if data, err = dot.RenderSVG(ctx, src); err != nil {
						return err
					}
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return cerrors.Wrap(cerrors.ErrCodeIO, err, "write %s", output)
				}
				printSuccess("Rendered %d roots", len(roots))
				printFile(output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, .dot or .svg (default stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include id, type and owner in labels")

	return cmd
}
