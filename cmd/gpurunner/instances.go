package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
	"github.com/NavarchProject/gpurunner/pkg/metrics"
)

func instancesCmd(g *globalFlags) *cobra.Command {
	var instanceType string

	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List running instances",
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

			instances, err := api.ListInstances(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list instances: %w", err)
			}

			if instanceType != "" {
				var filtered []lambda.Instance
				for _, inst := range instances {
					if inst.TypeName() == instanceType {
						filtered = append(filtered, inst)
					}
				}
				instances = filtered
			}

			return outputInstancesTable(g.stdout, instances)
		},
	}

	cmd.Flags().StringVar(&instanceType, "instance-type-name", "", "Only show instances of this type")

	return cmd
}

func outputInstancesTable(w io.Writer, instances []lambda.Instance) error {
	if len(instances) == 0 {
		fmt.Fprintln(w, "No instances found")
		return nil
	}

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].TypeName() != instances[j].TypeName() {
			return instances[i].TypeName() < instances[j].TypeName()
		}
		return instances[i].ID < instances[j].ID
	})

	data := pterm.TableData{{"ID", "Name", "Type", "Region", "Status", "IP", "SSH Keys"}}
	for _, inst := range instances {
		data = append(data, []string{
			inst.ID,
			orDash(inst.Name),
			orDash(inst.TypeName()),
			orDash(inst.RegionName()),
			formatInstanceStatus(inst.Status),
			orDash(inst.IP),
			orDash(strings.Join(inst.SSHKeyNames, ", ")),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithWriter(w).WithData(data).Render()
}

func formatInstanceStatus(status lambda.Status) string {
	switch status {
	case lambda.StatusActive:
		return "Active"
	case lambda.StatusBooting:
		return "Booting"
	case lambda.StatusUnhealthy:
		return "Unhealthy"
	case lambda.StatusTerminated:
		return "Terminated"
	case "":
		return "Unknown"
	default:
		return string(status)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
