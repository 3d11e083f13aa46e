// Package cli implements the contraforge command line client.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraforge/pkg/client"
)

var (
	cfgFile string
	server  string
	noColor bool
)

// Execute runs the CLI
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contraforge",
		Short: "Compile, test and verify Solidity contracts",
		Long: `Contraforge compiles and tests single-file Solidity contracts on a contraforge
server, verifies deployed contracts on the block explorer, and scores ABIs
for real-world-asset compliance features.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupColor(noColor)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: contraforge.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add subcommands
	rootCmd.AddCommand(createCompileCmd())
	rootCmd.AddCommand(createTestCmd())
	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createScoreCmd())
	rootCmd.AddCommand(createBuildsCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd
}

// getServer returns the server URL from flag, env, project config, or global config
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("CONTRAFORGE_SERVER"); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	// 4. Global config file (YAML)
	if global, err := loadGlobalConfig(); err == nil && global.Server != "" {
		return global.Server
	}

	// 5. Default
	return "http://localhost:8080"
}

// getCompilerVersion returns the flag value or the project default
func getCompilerVersion(flag string) string {
	if flag != "" {
		return flag
	}
	if config := loadProjectConfigSilent(); config != nil {
		return config.CompilerVersion
	}
	return ""
}

func newClient() *client.Client {
	return client.New(getServer())
}
