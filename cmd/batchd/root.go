package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"batchd/internal/config"
)

// options mirrors the command-line flags. Only flags the user set override
// values from the config file.
type options struct {
	configPath string

	addr         string
	modelsDir    string
	watchModels  bool
	defaultModel string

	backend          string
	backendURL       string
	backendTimeoutMS int
	echoLatencyMS    int

	maxBatchSize      int
	maxLatencyMS      int
	maxInFlight       int
	dispatchTimeoutMS int
	inferTimeoutMS    int
	maxBodyBytes      int64

	logLevel  string
	logFormat string

	corsEnabled bool
	corsOrigins string
}

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "batchd",
		Short: "Dynamic request batching in front of a batched inference backend",
		Long: strings.TrimSpace(`
batchd accepts single inference requests over HTTP, coalesces them per model
into bounded batches (closed by size or by the batching window), sends each
batch to the backend as one call and returns every caller its own slice.`),
		Example: strings.TrimSpace(`
  batchd --backend-url http://nim:8000 --max-batch-size 16 --max-latency-ms 5
  batchd --config /etc/batchd/config.yaml
  batchd check-config --config ./batchd.toml`),
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
	bindFlags(root.PersistentFlags(), opts)

	root.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print it as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			if cfg.BackendAPIKey != "" {
				cfg.BackendAPIKey = "*****"
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return root
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.configPath, "config", "", "Config file (.yaml, .json, .toml); defaults to $BATCHD_CONFIG")
	fs.StringVar(&o.addr, "addr", config.DefaultAddr, "HTTP listen address; defaults to $BATCHD_ADDR")
	fs.StringVar(&o.modelsDir, "models-dir", "", "Directory to scan for *.onnx, *.plan and *.engine model artifacts")
	fs.BoolVar(&o.watchModels, "watch-models", false, "Re-scan --models-dir when artifacts are added or removed")
	fs.StringVar(&o.defaultModel, "default-model", "", "Model used when a request omits one")
	fs.StringVar(&o.backend, "backend", config.DefaultBackend, "Backend kind: nim|echo")
	fs.StringVar(&o.backendURL, "backend-url", "", "Base URL of the NIM-style inference service")
	fs.IntVar(&o.backendTimeoutMS, "backend-timeout-ms", 0, "HTTP timeout for one backend call (0 = none)")
	fs.IntVar(&o.echoLatencyMS, "echo-latency-ms", 0, "Artificial latency of the echo backend")
	fs.IntVar(&o.maxBatchSize, "max-batch-size", config.DefaultMaxBatchSize, "Close a batch once it holds this many requests")
	fs.IntVar(&o.maxLatencyMS, "max-latency-ms", config.DefaultMaxLatencyMS, "Close a batch this long after its first request")
	fs.IntVar(&o.maxInFlight, "max-in-flight", 0, "Per-model backpressure ceiling (0 = 4x max batch size)")
	fs.IntVar(&o.dispatchTimeoutMS, "dispatch-timeout-ms", 0, "Bound on one batch dispatch (0 = none)")
	fs.IntVar(&o.inferTimeoutMS, "infer-timeout-ms", config.DefaultInferTimeoutMS, "Server-side cap on how long a caller waits")
	fs.Int64Var(&o.maxBodyBytes, "max-body-bytes", 1<<20, "Maximum /infer request body size")
	fs.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&o.logFormat, "log-format", config.DefaultLogFormat, "Log format: json|console")
	fs.BoolVar(&o.corsEnabled, "cors-enabled", false, "Enable CORS")
	fs.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
}

// resolveConfig layers the config file, environment and changed flags, in
// that order, then applies defaults and validates.
func resolveConfig(fs *pflag.FlagSet, o *options) (config.Config, error) {
	var cfg config.Config
	path := o.configPath
	if path == "" {
		path = os.Getenv("BATCHD_CONFIG")
	}
	if path != "" {
		fc, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = fc
	}

	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if v := os.Getenv("BATCHD_ADDR"); v != "" && !changed["addr"] {
		cfg.Addr = v
	}
	if v := os.Getenv("BATCHD_BACKEND_API_KEY"); v != "" {
		cfg.BackendAPIKey = v
	}

	set := func(name string, apply func()) {
		if changed[name] {
			apply()
		}
	}
	set("addr", func() { cfg.Addr = o.addr })
	set("models-dir", func() { cfg.ModelsDir = o.modelsDir })
	set("watch-models", func() { cfg.WatchModels = o.watchModels })
	set("default-model", func() { cfg.DefaultModel = o.defaultModel })
	set("backend", func() { cfg.Backend = o.backend })
	set("backend-url", func() { cfg.BackendURL = o.backendURL })
	set("backend-timeout-ms", func() { cfg.BackendTimeoutMS = o.backendTimeoutMS })
	set("echo-latency-ms", func() { cfg.EchoLatencyMS = o.echoLatencyMS })
	set("max-batch-size", func() { cfg.MaxBatchSize = o.maxBatchSize })
	set("max-latency-ms", func() {
		v := o.maxLatencyMS
		cfg.MaxLatencyMS = &v
	})
	set("max-in-flight", func() { cfg.MaxInFlight = o.maxInFlight })
	set("dispatch-timeout-ms", func() { cfg.DispatchTimeoutMS = o.dispatchTimeoutMS })
	set("infer-timeout-ms", func() { cfg.InferTimeoutMS = o.inferTimeoutMS })
	set("max-body-bytes", func() { cfg.MaxBodyBytes = o.maxBodyBytes })
	set("log-level", func() { cfg.LogLevel = o.logLevel })
	set("log-format", func() { cfg.LogFormat = o.logFormat })
	set("cors-enabled", func() { cfg.CORSEnabled = o.corsEnabled })
	set("cors-origins", func() { cfg.CORSAllowedOrigins = splitCSV(o.corsOrigins) })

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// splitCSV splits a comma-separated flag value, dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
