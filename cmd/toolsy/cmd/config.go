package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shtefko55/toolsy/internal/config"
	"github.com/shtefko55/toolsy/pkg/bytesize"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing toolsy configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  toolsy config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, .toolsy.yaml, /etc/toolsy/config.yaml)
  - Environment variables (TOOLSY_SERVER_PORT, TOOLSY_STORAGE_BASE_DIR, etc.)
  - Command-line flags (for some options)

Environment variables use the TOOLSY_ prefix and underscores for nesting.
Example: server.port -> TOOLSY_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Tag.Get("yaml")
		}
		if key == "" {
			key = fieldType.Name
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = fv.String()
		case config.ByteSize:
			result[key] = bytesize.Format(bytesize.Size(fv))
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	// Load config with defaults only, no file
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfgMap := toMap(cfg)

	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# toolsy Configuration File")
	fmt.Println("# ==========================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration format: 30s, 5m, 1h")
	fmt.Println("# Size format: 5MB, 1GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   TOOLSY_SERVER_HOST, TOOLSY_SERVER_PORT")
	fmt.Println("#   TOOLSY_STORAGE_BASE_DIR, TOOLSY_STORAGE_MAX_UPLOAD_SIZE")
	fmt.Println("#   TOOLSY_LOGGING_LEVEL, TOOLSY_LOGGING_FORMAT")
	fmt.Println("#   TOOLSY_RETENTION_SWEEP_INTERVAL, TOOLSY_CAPTURE_MAX_DURATION")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
