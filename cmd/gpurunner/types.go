package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
	"github.com/NavarchProject/gpurunner/pkg/metrics"
)

func typesCmd(g *globalFlags) *cobra.Command {
	var availableOnly bool
	var output string

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List instance types and the regions with capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			m := metrics.New()
			defer g.writeMetrics(cfg, m)

			api, err := g.newAPI(cfg, m)
			if err != nil {
				return err
			}
			catalog, err := listTypes(cmd.Context(), api, availableOnly)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				enc := json.NewEncoder(g.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog)
			case "table":
				return outputTypesTable(g.stdout, catalog)
			default:
				return fmt.Errorf("unsupported output format: %s", output)
			}
		},
	}

	cmd.Flags().BoolVar(&availableOnly, "available", false, "Only show types with capacity in at least one region")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	return cmd
}

func listTypes(ctx context.Context, api lambda.API, availableOnly bool) (lambda.Catalog, error) {
	catalog, err := api.ListInstanceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instance types: %w", err)
	}
	if !availableOnly {
		return catalog, nil
	}
	filtered := make(lambda.Catalog)
	for name, entry := range catalog {
		if entry.Available() {
			filtered[name] = entry
		}
	}
	return filtered, nil
}

func outputTypesTable(w io.Writer, catalog lambda.Catalog) error {
	if len(catalog) == 0 {
		fmt.Fprintln(w, "No instance types found")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Append([]string{"Name", "Description", "Price/hr", "vCPUs", "Memory", "Storage", "Regions"})

	for _, name := range catalog.Names() {
		entry := catalog[name]
		spec := entry.InstanceType.Specs

		regions := "-"
		if entry.Available() {
			regions = strings.Join(entry.RegionNames(), ", ")
		}

		table.Append([]string{
			name,
			entry.InstanceType.Description,
			formatPrice(entry.InstanceType.PriceCentsPerHour),
			fmt.Sprintf("%d", spec.VCPUs),
			fmt.Sprintf("%d GiB", spec.MemoryGiB),
			fmt.Sprintf("%d GiB", spec.StorageGiB),
			regions,
		})
	}

	return table.Render()
}

func formatPrice(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
