package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/warren/internal/printer"
	"github.com/spf13/cobra"
)

var initForce bool

// defaultConfig is the scaffolded warren.yml: the full five-producer
// pipeline against a local Redis.
const defaultConfig = `version: "1.0"
instance: default
redis:
  addr: localhost:6379

producers:
  prompter:
    stage: idea
    kind: base_prompt
    next: base_prompt_ready
    terminal: true
  planner:
    stage: base_prompt_ready
    kind: master_plan
    requires: [base_prompt]
    next: planning
    terminal: true
  indexer:
    stage: planning
    kind: screen_index
    requires: [base_prompt, master_plan]
    next: screens_defined
    terminal: true
  screenwright:
    stage: screens_defined
    kind: screen_definition
    requires: [master_plan, screen_index]
    next: screens_generated
    terminal: true
  visualist:
    stage: screens_generated
    kind: visual_contract
    requires: [master_plan, screen_index]
    next: visuals_locked
    terminal: true
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a warren.yml in the current directory",
	Long: `Create a starter warren.yml with the default five-producer pipeline.

Examples:
  warren init
  warren init --force   # overwrite an existing warren.yml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing warren.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err == nil && !initForce {
		return printer.Error(
			"warren.yml already exists",
			fmt.Sprintf("Refusing to overwrite %s.", cfgFile),
			[]string{"Use --force to overwrite it"},
		)
	}

	if err := os.WriteFile(cfgFile, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgFile, err)
	}

	printer.Success("Created %s\n", cfgFile)
	printer.Info("Edit the Redis address and producer registry, then run: warren begin\n")

	return nil
}
