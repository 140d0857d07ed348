package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/export"
	"github.com/JonMunkholm/tabrecon/internal/profile"
	"github.com/JonMunkholm/tabrecon/internal/render"
	"github.com/JonMunkholm/tabrecon/internal/workbook"
)

func (a *app) sheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets FILE",
		Short: "List the sheets of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := workbook.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			for _, name := range src.SheetNames() {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}
}

func (a *app) inspectCmd() *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the columns of a sheet with kinds, blank counts and amount totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := a.load(cmd, a.newService(), args[0], sheet)
			if err != nil {
				return err
			}
			ds := entry.Dataset

			profiles, err := profile.Dataset(ds)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "%s [%s]: %d rows, %d columns\n", entry.FileName, entry.Sheet, len(ds.Rows), ds.Width())
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tCOLUMN\tKIND\tBLANKS\tDISTINCT\tSUM")
			for _, p := range profiles {
				sum := "-"
				if p.Numeric != nil {
					sum = strconv.FormatFloat(p.Numeric.Sum, 'f', -1, 64)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", p.Index, p.Column, p.Kind, p.Blanks, p.Distinct, sum)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to load (default: first sheet)")
	return cmd
}

type mergeOptions struct {
	fromSheet, toSheet string
	fromKey, toKey     string
	returnCol          string
	mode               string
	matchedOut         string
	unmatchedOut       string
	format             string
}

func (a *app) mergeCmd() *cobra.Command {
	var opts mergeOptions
	cmd := &cobra.Command{
		Use:   "merge FROM TO",
		Short: "Look up rows of FROM in TO by key",
		Long: `merge joins every row of FROM to the first row of TO with the same key.

With --mode vlookup the whole TO row is appended; with --mode xlookup only the
--return column is. Columns are given by header label or 0-based index.
Matched rows go to --matched-out (default: stdout); rows without a match go to
--unmatched-out when set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMerge(cmd, args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", string(core.ModeVLookup), "Lookup type: vlookup or xlookup")
	f.StringVar(&opts.fromKey, "from-key", "", "Key column in FROM")
	f.StringVar(&opts.toKey, "to-key", "", "Key column in TO")
	f.StringVar(&opts.returnCol, "return", "", "Column of TO to return (xlookup)")
	f.StringVar(&opts.fromSheet, "from-sheet", "", "Sheet of FROM (default: first sheet)")
	f.StringVar(&opts.toSheet, "to-sheet", "", "Sheet of TO (default: first sheet)")
	f.StringVar(&opts.matchedOut, "matched-out", "", "File for matched rows (default: stdout)")
	f.StringVar(&opts.unmatchedOut, "unmatched-out", "", "File for unmatched rows")
	f.StringVar(&opts.format, "format", "", "Output format: csv, json or parquet (default: from file extension, else csv)")
	_ = cmd.MarkFlagRequired("from-key")
	_ = cmd.MarkFlagRequired("to-key")
	return cmd
}

func (a *app) runMerge(cmd *cobra.Command, fromPath, toPath string, opts mergeOptions) error {
	svc := a.newService()

	var from, to *core.StoredDataset
	g, _ := errgroup.WithContext(cmd.Context())
	g.Go(func() (err error) {
		from, err = a.load(cmd, svc, fromPath, opts.fromSheet)
		return err
	})
	g.Go(func() (err error) {
		to, err = a.load(cmd, svc, toPath, opts.toSheet)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	req := core.MergeRequest{Mode: core.MergeMode(strings.ToLower(opts.mode))}
	var err error
	if req.FromKey, err = resolveFlag(from.Dataset, opts.fromKey); err != nil {
		return fmt.Errorf("--from-key: %w", err)
	}
	if req.ToKey, err = resolveFlag(to.Dataset, opts.toKey); err != nil {
		return fmt.Errorf("--to-key: %w", err)
	}
	if req.ReturnCol, err = resolveFlag(to.Dataset, opts.returnCol); err != nil {
		return fmt.Errorf("--return: %w", err)
	}

	result, run, err := svc.Merge(cmd.Context(), from.ID, to.ID, req)
	if err != nil {
		return err
	}

	matched, _ := result.Part("matched")
	if err := a.writeDataset(matched, opts.matchedOut, opts.format); err != nil {
		return err
	}
	if opts.unmatchedOut != "" {
		unmatched, _ := result.Part("unmatched")
		if err := a.writeDataset(unmatched, opts.unmatchedOut, opts.format); err != nil {
			return err
		}
	}

	fmt.Fprintf(a.stderr, "%s: %d matched, %d unmatched (%d ms)\n",
		run.Mode, run.MatchedCount, run.UnmatchedCount, run.DurationMS)
	return nil
}

func (a *app) convertCmd() *cobra.Command {
	var sheet, out, format string
	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Write a normalized sheet as csv, json or parquet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := a.load(cmd, a.newService(), args[0], sheet)
			if err != nil {
				return err
			}
			return a.writeDataset(entry.Dataset, out, format)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to load (default: first sheet)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: csv, json or parquet (default: from file extension, else csv)")
	return cmd
}

func (a *app) flattenCmd() *cobra.Command {
	var sheet, out string
	cmd := &cobra.Command{
		Use:   "flatten FILE",
		Short: "Flatten a rendered pivot table to CSV",
		Long: `flatten reads the pivot table of an .html page, or a sheet of an .xlsx
workbook with merged cells, and writes it as a rectangular CSV grid. A spanning
cell's text appears once, at its top-left position.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := readRenderedTable(args[0], sheet)
			if err != nil {
				return err
			}
			text, err := core.ExportPivotCSV(table, 0)
			if err != nil {
				return err
			}
			return a.writeOutput(out, func(w io.Writer) error {
				_, err := io.WriteString(w, text+"\n")
				return err
			})
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet of an .xlsx file (default: first sheet)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

// readRenderedTable reads the displayed layout of an HTML page or workbook sheet.
func readRenderedTable(path, sheet string) (*core.RenderedTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return render.ParseTable(f)
	case ".xlsx":
		src, err := workbook.OpenFile(path)
		if err != nil {
			return nil, err
		}
		defer src.Close()
		name, _, err := core.ResolveSheet(src.SheetNames(), sheet)
		if err != nil {
			return nil, err
		}
		xl, ok := src.(*workbook.Excel)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a workbook", core.ErrUnsupportedFile, filepath.Base(path))
		}
		return xl.RenderedTable(name)
	default:
		return nil, fmt.Errorf("%w: %q (flatten reads .html or .xlsx)", core.ErrUnsupportedFile, filepath.Base(path))
	}
}

// load opens path and stores the chosen sheet in svc.
func (a *app) load(cmd *cobra.Command, svc *core.Service, path, sheet string) (*core.StoredDataset, error) {
	src, err := workbook.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return svc.LoadWorkbook(cmd.Context(), filepath.Base(path), src, sheet)
}

// resolveFlag resolves a column flag; an empty flag stays unset.
func resolveFlag(ds *core.Dataset, ref string) (*int, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, nil
	}
	idx, err := ds.ResolveColumn(ref)
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// outputFormat picks the explicit format, else the one named by the output
// file's extension, else csv.
func outputFormat(explicit, path string) (export.Format, error) {
	if explicit != "" {
		return export.ParseFormat(explicit)
	}
	if f, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f, nil
	}
	return export.FormatCSV, nil
}

func (a *app) writeDataset(ds *core.Dataset, path, format string) error {
	f, err := outputFormat(format, path)
	if err != nil {
		return err
	}
	return a.writeOutput(path, func(w io.Writer) error {
		return export.Write(w, ds, f)
	})
}

// writeOutput runs write against path, or stdout when path is empty.
func (a *app) writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(a.stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
