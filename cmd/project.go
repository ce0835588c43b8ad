package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"beatcut/internal/project"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage project workspaces",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := project.Current(projectsRoot)
		if err != nil {
			return err
		}
		names, err := project.List(projectsRoot)
		if err != nil {
			return err
		}
		for _, name := range names {
			marker := " "
			if name == ctx.Name {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %s\n", marker, name)
		}
		return nil
	},
}

var projectCreateSwitch bool

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := project.Create(projectsRoot, args[0])
		if err != nil {
			return err
		}
		if projectCreateSwitch {
			if err := project.Switch(projectsRoot, args[0]); err != nil {
				return err
			}
		}
		fmt.Fprintf(os.Stdout, "created %s\n", dir)
		return nil
	},
}

var projectSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Make a project current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := project.Switch(projectsRoot, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "switched to %s\n", args[0])
		return nil
	},
}

var projectDeleteYes bool

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a project and all its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !projectDeleteYes {
			return fmt.Errorf("deleting %q removes all its files; re-run with --yes to confirm", args[0])
		}
		current, err := project.Delete(projectsRoot, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "deleted %s (current: %s)\n", args[0], current)
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().BoolVar(&projectCreateSwitch, "switch", false, "switch to the new project")
	projectDeleteCmd.Flags().BoolVar(&projectDeleteYes, "yes", false, "confirm deletion")
	projectCmd.AddCommand(projectListCmd, projectCreateCmd, projectSwitchCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
