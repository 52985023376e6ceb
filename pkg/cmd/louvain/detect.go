package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gilchrisn/community-detection/pkg/graph"
	"github.com/gilchrisn/community-detection/pkg/layout"
	"github.com/gilchrisn/community-detection/pkg/louvain"
	"github.com/gilchrisn/community-detection/pkg/output"
	"github.com/gilchrisn/community-detection/pkg/parser"
	"github.com/gilchrisn/community-detection/pkg/render"
)

type detectOpts struct {
	configFile string
	weighted   bool
	imagePath  string
	dotPath    string
	jsonPath   string
	mappingDir string
}

// flagBindings maps command-line flags to configuration keys.
var flagBindings = map[string]string{
	"seed":           "algorithm.random_seed",
	"max-iterations": "algorithm.max_iterations",
	"strategy":       "algorithm.gain_strategy",
	"log-level":      "logging.level",
	"track-moves":    "analysis.track_moves",
	"moves-file":     "analysis.output_file",
}

func newDetectCommand() *cobra.Command {
	opts := detectOpts{}

	cmd := &cobra.Command{
		Use:   "detect <edgelist>",
		Short: "Detect communities in an edge-list file",
		Long: `Load an edge list (one "u v" pair of non-negative integers per line),
run the modularity local-move optimizer and print the communities found.
Optionally render the partition as an image or Graphviz document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.Int64("seed", 0, "random seed for the node visiting order")
	flags.Int("max-iterations", 500, "maximum number of local-move passes")
	flags.String("strategy", string(louvain.GainIncremental), "gain evaluation: incremental or recompute")
	flags.String("log-level", "info", "log level (debug, info, warn, error, disabled)")
	flags.Bool("track-moves", false, "record every committed move as JSON lines")
	flags.String("moves-file", "moves.jsonl", "move tracking output file")

	flags.StringVar(&opts.configFile, "config", "", "YAML or JSON configuration file")
	flags.BoolVar(&opts.weighted, "weighted", false, "read an optional third column as edge weight")
	flags.StringVarP(&opts.imagePath, "output", "o", "", "render the communities to a .pdf, .svg or .png file")
	flags.StringVar(&opts.dotPath, "dot", "", "write a Graphviz document")
	flags.StringVar(&opts.jsonPath, "json", "", "write the result as JSON ('-' for stdout)")
	flags.StringVar(&opts.mappingDir, "mapping-dir", "", "write mapping, root and JSON files into this directory")

	return cmd
}

// buildConfig layers defaults, the optional config file and explicitly set flags.
func buildConfig(flags *pflag.FlagSet, configFile string, logOutput io.Writer) (*louvain.Config, error) {
	config := louvain.NewConfig()
	config.SetLogOutput(logOutput)

	if configFile != "" {
		if err := config.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	for name, key := range flagBindings {
		if err := config.Viper().BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	if config.MaxIterations() < 0 {
		return nil, fmt.Errorf("max iterations must be non-negative, got %d", config.MaxIterations())
	}
	strategy := louvain.GainStrategy(config.Viper().GetString("algorithm.gain_strategy"))
	if strategy != louvain.GainIncremental && strategy != louvain.GainRecompute {
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}

	return config, nil
}

func runDetect(cmd *cobra.Command, path string, opts detectOpts) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	config, err := buildConfig(cmd.Flags(), opts.configFile, stderr)
	if err != nil {
		return err
	}
	logger := config.CreateLogger()

	g, stats, err := parser.LoadEdgeListWithOptions(path, parser.Options{Weighted: opts.weighted})
	if err != nil {
		return fmt.Errorf("error loading file: %w", err)
	}
	fmt.Fprintf(stdout, "Loaded %d nodes and %d edges.\n", g.NumNodes(), g.NumEdges())
	if stats.Skipped > 0 || stats.BadWeights > 0 {
		logger.Warn().
			Int("skipped_lines", stats.Skipped).
			Int("bad_weights", stats.BadWeights).
			Msg("Some input lines were ignored")
	}

	result, err := louvain.Run(g, config)
	if err != nil {
		return err
	}

	if err := output.WriteCommunities(stdout, result); err != nil {
		return err
	}

	if logger.GetLevel() <= zerolog.DebugLevel {
		logger.Debug().
			Float64("modularity", result.Modularity).
			Float64("gonum_modularity", louvain.GonumModularity(g, result.Communities)).
			Msg("Modularity cross-check")
	}

	if err := writeArtifacts(stdout, g, result, opts); err != nil {
		return err
	}
	return nil
}

func writeArtifacts(stdout io.Writer, g *graph.Graph, result *louvain.Result, opts detectOpts) error {
	if opts.jsonPath == "-" {
		if err := output.WriteJSON(stdout, result); err != nil {
			return err
		}
	} else if opts.jsonPath != "" {
		if err := writeFile(opts.jsonPath, func(w io.Writer) error {
			return output.WriteJSON(w, result)
		}); err != nil {
			return err
		}
	}

	if opts.mappingDir != "" {
		if err := output.NewFileWriter().WriteAll(result, opts.mappingDir, "communities"); err != nil {
			return err
		}
	}

	if opts.imagePath == "" && opts.dotPath == "" {
		return nil
	}
	if g.NumNodes() == 0 {
		return fmt.Errorf("cannot render a graph without nodes")
	}

	l, err := layout.Compute(g, layout.DefaultOptions())
	if err != nil {
		return fmt.Errorf("layout failed: %w", err)
	}

	if opts.imagePath != "" {
		if err := render.PDF(opts.imagePath, g, result.Communities, l, render.DefaultOptions()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Graph saved to %s\n", opts.imagePath)
	}

	if opts.dotPath != "" {
		if err := writeFile(opts.dotPath, func(w io.Writer) error {
			return render.DOT(w, g, result.Communities, l)
		}); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Graphviz document saved to %s\n", opts.dotPath)
	}

	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(file)
}
