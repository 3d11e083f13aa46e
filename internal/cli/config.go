package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"contraforge.toml", "cf.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server          string `toml:"server"`
	CompilerVersion string `toml:"compiler_version,omitempty"`
	Network         string `toml:"network,omitempty"`
}

// GlobalConfig is the user configuration (stored in ~/.contraforge/config.yaml)
type GlobalConfig struct {
	Server  string `yaml:"server"`
	Network string `yaml:"network,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var compilerVersion string
	var network string
	var global bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a contraforge.toml configuration file in the current directory,
or ~/.contraforge/config.yaml with --global.

EXAMPLES:
  # Create project config with default server
  contraforge config init

  # Pin the compiler and verification network for this project
  contraforge config init --compiler-version 0.8.24 --network mainnet

  # Set the server for every project
  contraforge config init --global --server https://forge.example.com
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global {
				path := globalConfigPath()
				if err := writeGlobalConfig(path, GlobalConfig{Server: serverURL, Network: network}, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
				return nil
			}
			return runConfigInit(cmd.OutOrStdout(), "contraforge.toml", ProjectConfig{
				Server:          serverURL,
				CompilerVersion: compilerVersion,
				Network:         network,
			}, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "server URL")
	cmd.Flags().StringVar(&compilerVersion, "compiler-version", "", "solc version used when none is given")
	cmd.Flags().StringVar(&network, "network", "testnet", "verification network")
	cmd.Flags().BoolVar(&global, "global", false, "write ~/.contraforge/config.yaml instead")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows both the local project config (contraforge.toml) and the global config from ~/.contraforge/config.yaml.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runConfigShow(cmd.OutOrStdout())
			return nil
		},
	}
}

func runConfigInit(w io.Writer, configPath string, cfg ProjectConfig, force bool) error {
	// Check if any config file already exists
	dir := filepath.Dir(configPath)
	for _, name := range projectConfigFiles {
		existing := filepath.Join(dir, name)
		if _, err := os.Stat(existing); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", existing)
		}
	}

	content := fmt.Sprintf(`# Contraforge project configuration

server = %q
`, cfg.Server)
	if cfg.CompilerVersion != "" {
		content += fmt.Sprintf("compiler_version = %q\n", cfg.CompilerVersion)
	} else {
		content += "# compiler_version = \"0.8.20\"\n"
	}
	if cfg.Network != "" {
		content += fmt.Sprintf("network = %q\n", cfg.Network)
	}

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(w, "Created %s\n", configPath)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  contraforge compile src/Token.sol")
	fmt.Fprintln(w, "  contraforge test src/Token.sol --test test/Token.t.sol")

	return nil
}

func runConfigShow(w io.Writer) {
	fmt.Fprintln(w, "Configuration sources (in order of precedence):")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "1. Command line flags")
	fmt.Fprintln(w, "   --server, --config")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "2. Environment variables")
	if env := os.Getenv("CONTRAFORGE_SERVER"); env != "" {
		fmt.Fprintf(w, "   CONTRAFORGE_SERVER=%s\n", env)
	} else {
		fmt.Fprintln(w, "   CONTRAFORGE_SERVER=(not set)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "3. Local project config (contraforge.toml or cf.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(w, "   (not found)")
	case err != nil:
		fmt.Fprintf(w, "   Error: %v\n", err)
	default:
		fmt.Fprintf(w, "   Loaded from: %s\n", configPath)
		if projectConfig.Server != "" {
			fmt.Fprintf(w, "   server: %s\n", projectConfig.Server)
		}
		if projectConfig.CompilerVersion != "" {
			fmt.Fprintf(w, "   compiler_version: %s\n", projectConfig.CompilerVersion)
		}
		if projectConfig.Network != "" {
			fmt.Fprintf(w, "   network: %s\n", projectConfig.Network)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "4. Global config (%s)\n", globalConfigPath())
	globalConfig, err := loadGlobalConfig()
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(w, "   (not found)")
	case err != nil:
		fmt.Fprintf(w, "   Error: %v\n", err)
	default:
		if globalConfig.Server != "" {
			fmt.Fprintf(w, "   server: %s\n", globalConfig.Server)
		}
		if globalConfig.Network != "" {
			fmt.Fprintf(w, "   network: %s\n", globalConfig.Network)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Effective configuration:")
	fmt.Fprintf(w, "   Server:  %s\n", getServer())
	fmt.Fprintf(w, "   Network: %s\n", getNetwork(""))
}

// getNetwork returns the flag value, the project or global default, or testnet
func getNetwork(flag string) string {
	if flag != "" {
		return flag
	}
	if config := loadProjectConfigSilent(); config != nil && config.Network != "" {
		return config.Network
	}
	if global, err := loadGlobalConfig(); err == nil && global.Network != "" {
		return global.Network
	}
	return "testnet"
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	// If --config flag was provided, use that directly
	if cfgFile != "" {
		config, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return config, cfgFile, nil
	}

	// Search for config files in order
	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			config, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return config, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return &config, nil
}

// loadProjectConfigSilent loads the project config without returning errors for missing files.
// Returns nil if the file doesn't exist, but reports parse failures.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Show actionable errors (parse failures)
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return config
}

func configDir() string {
	if dir := os.Getenv("CONTRAFORGE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".contraforge"
	}
	return filepath.Join(home, ".contraforge")
}

func globalConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func loadGlobalConfig() (*GlobalConfig, error) {
	data, err := os.ReadFile(globalConfigPath())
	if err != nil {
		return nil, err
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", globalConfigPath(), err)
	}
	return &config, nil
}

func writeGlobalConfig(path string, cfg GlobalConfig, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
