package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/entitygrid/internal/export"
	"github.com/matthewbaird/entitygrid/internal/grid"
)

var (
	flagExportFormat string
	flagExportName   string
	flagExportS3     bool
	flagExportQuick  []string
)

var exportCmd = &cobra.Command{
	Use:   "export <type>",
	Short: "Export a grid as csv or txt",
	Long: `Export writes the rows of a grid, with the view's filter, saved sort
order and quick filters applied, to export.dir or to the configured S3
bucket (--s3).

Example:
  gridctl export Order --format txt
  gridctl export Order --s3 --name orders-2024`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagExportFormat, "format", export.FormatCSV, "csv or txt")
	exportCmd.Flags().StringVar(&flagExportName, "name", "", "file name without extension (default: the type)")
	exportCmd.Flags().BoolVar(&flagExportS3, "s3", false, "upload to export.bucket instead of writing to export.dir")
	exportCmd.Flags().StringArrayVar(&flagExportQuick, "quick", nil, "quick filter as column=text (repeatable)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	typ := args[0]
	name := flagExportName
	if name == "" {
		name = typ
	}

	sink, err := exportSink(ctx)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.pull(ctx); err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	g, w, err := openGrid(ctx, a, typ, io.Discard, 0)
	if err != nil {
		return err
	}
	defer g.Dispose()
	for _, q := range flagExportQuick {
		col, text, ok := strings.Cut(q, "=")
		if !ok {
			return fmt.Errorf("invalid quick filter %q (expected column=text)", q)
		}
		if err := g.SetQuickFilter(ctx, col, text); err != nil {
			return err
		}
	}

	var (
		loc    string
		runErr error
	)
	done := false
	unsubscribe := g.OnEvent(func(evt grid.Event) {
		if evt.Type != grid.EventExportData {
			return
		}
		done = true
		loc, runErr = export.Export(ctx, g.ExportRows(), flagExportFormat, name, sink)
	})
	defer unsubscribe()

	w.Command("export")
	if !done {
		return fmt.Errorf("grid of %s has no export command", typ)
	}
	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", len(g.Visible()), loc)
	return nil
}

func exportSink(ctx context.Context) (export.Sink, error) {
	if !flagExportS3 {
		return export.FileSink{Dir: settings.GetString(cfgKeyExportDir)}, nil
	}
	bucket := settings.GetString(cfgKeyExportBucket)
	if bucket == "" {
		return nil, fmt.Errorf("--s3 needs export.bucket in config.yaml")
	}
	return export.NewS3Sink(ctx, export.S3Config{
		Bucket:       bucket,
		Prefix:       settings.GetString(cfgKeyExportPrefix),
		Region:       settings.GetString(cfgKeyExportRegion),
		Endpoint:     settings.GetString(cfgKeyExportURL),
		UsePathStyle: settings.GetBool(cfgKeyExportPath),
	})
}
