package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// FileName is the config file looked up in the home directory and /etc.
const FileName = "schedprobe.config"

// Config is the raw parsed schedprobe.config.json (or .yaml).
// Sections use json.RawMessage for three-state handling:
// nil (absent) = use defaults, "null" = explicitly disabled, "{...}" = configured.
type Config struct {
	Rows     *int   `json:"rows"`
	Format   string `json:"format"`
	Interval string `json:"interval"`
	ProcRoot string `json:"proc_root"`
	Workers  int    `json:"workers"`
	Align    string `json:"align"`

	Source    json.RawMessage `json:"source"`
	Report    json.RawMessage `json:"report"`
	Log       json.RawMessage `json:"log"`
	Metrics   json.RawMessage `json:"metrics"`
	Telemetry json.RawMessage `json:"telemetry"`
}

type SourceConfig struct {
	Kind        string   `json:"kind"`
	Command     []string `json:"command"`
	HeaderToken string   `json:"header_token"`
}

type ReportConfig struct {
	Path     string `json:"path"`
	MaxSize  string `json:"max_size"`
	MaxFiles int    `json:"max_files"`
}

type LogConfig struct {
	Level   string `json:"level"`
	File    string `json:"file"`
	MaxSize string `json:"max_size"`
}

type MetricsConfig struct {
	Listen string `json:"listen"`
	Path   string `json:"path"`
}

type TelemetryConfig struct {
	Telegraf *TelegrafConfig `json:"telegraf,omitempty"`
}

type TelegrafConfig struct {
	UDP         string `json:"udp"`
	Measurement string `json:"measurement"`
}

type LoadResult struct {
	Config *Config
	Path   string // file path used, empty if none
	Source string // "found", "--config flag", ""
}

// Home returns the probe's home directory ($SCHEDPROBE_HOME or ~/.schedprobe).
func Home() string {
	if h := os.Getenv("SCHEDPROBE_HOME"); h != "" {
		return h
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".schedprobe")
}

// Load searches for the config file and parses it.
// Search order: configFlag (if set), then home, then /etc; in each directory
// .json, .yaml and .yml are tried in that order.
// If configFlag is set and file doesn't exist, returns error.
// If no file found, returns empty LoadResult (all defaults).
func Load(home string, configFlag string) (*LoadResult, error) {
	if configFlag != "" {
		data, err := os.ReadFile(configFlag)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configFlag)
		}
		if err != nil {
			return nil, fmt.Errorf("config file not readable: %s - %w", configFlag, err)
		}
		cfg, err := decode(data, configFlag)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Path: configFlag, Source: "--config flag"}, nil
	}

	for _, dir := range []string{home, "/etc"} {
		for _, ext := range []string{".json", ".yaml", ".yml"} {
			path := filepath.Join(dir, FileName+ext)
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("config file not readable: %s - %w", path, err)
			}
			cfg, err := decode(data, path)
			if err != nil {
				return nil, err
			}
			return &LoadResult{Config: cfg, Path: path, Source: "found"}, nil
		}
	}
	return &LoadResult{}, nil
}

// decode parses JSON, or YAML when path has a YAML extension. YAML is
// converted to JSON first so both share the same three-state handling.
func decode(data []byte, path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		jb, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid YAML - %w", path, err)
		}
		data = jb
	}
	var cfg Config
	if err := unmarshalStrict(data, &cfg, path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unmarshalStrict(data []byte, cfg *Config, path string) error {
	if err := json.Unmarshal(data, cfg); err != nil {
		if synErr, ok := err.(*json.SyntaxError); ok {
			line, col := lineCol(data, synErr.Offset)
			return fmt.Errorf("%s: invalid JSON at line %d, column %d: %s", path, line, col, synErr)
		}
		return fmt.Errorf("%s: invalid JSON - %w", path, err)
	}
	return nil
}

func lineCol(data []byte, offset int64) (int, int) {
	line := 1
	col := 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// isJSONNull checks if raw JSON is the literal "null".
func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 4 && string(raw) == "null"
}
