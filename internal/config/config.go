// Package config loads the YAML configuration recognized by the xerp CLI
// (spec.md §6 Configuration), grounded on the teacher's nested Config struct
// shape (internal/config/config.go in the teacher) but with KDL swapped for
// gopkg.in/yaml.v3 and environment overrides in place of the teacher's
// global/project merge.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/trans/xerp-sub001/internal/types"
	"github.com/trans/xerp-sub001/internal/xerrors"
)

// Default values for every recognized key (spec.md §6 Configuration table).
const (
	DefaultTabWidth       = 0 // 0 means auto-detect
	DefaultMaxTokenLen    = 128
	DefaultMaxBlockLines  = 200
	DefaultWindowSize     = 50
	DefaultWindowOverlap  = 10
	DefaultCoocWindowSize = 5

	DefaultSaliencePercent = 0.30
	DefaultSalienceMin     = 8
	DefaultSalienceMax     = 64

	DefaultTopK            = 20
	DefaultMaxCandidates   = 1000
	DefaultExpansionTopK   = 8
	DefaultMinSimilarity   = 0.25
	DefaultMaxDFPercent    = 22
	DefaultWIDF            = 0.1
	DefaultWFeedback       = 0.2
	DefaultClusterModeName = "centroid"
)

// Config is the root configuration tree, unmarshaled from
// `<root>/.config/xerp.yaml`.
type Config struct {
	Project Project `yaml:"project"`
	Index   Index   `yaml:"index"`
	Train   Train   `yaml:"train"`
	Query   Query   `yaml:"query"`
}

// Project carries the indexing root and the derived cache/config paths.
type Project struct {
	Root     string `yaml:"root"`
	CacheDir string `yaml:"cache_dir"`
	DBPath   string `yaml:"db_path"`
}

// Index holds the tokenizer/block-adapter knobs (spec.md §6 "index" group).
type Index struct {
	TabWidth      int `yaml:"tab_width"`
	MaxTokenLen   int `yaml:"max_token_len"`
	MaxBlockLines int `yaml:"max_block_lines"`
	WindowSize    int `yaml:"window_size"`
	WindowOverlap int `yaml:"window_overlap"`

	MaxFileSizeBytes int64    `yaml:"max_file_size_bytes"`
	MaxFileCount     int      `yaml:"max_file_count"`
	ParallelWorkers  int      `yaml:"parallel_workers"` // 0 = auto-detect (NumCPU)
	Include          []string `yaml:"include"`
	Exclude          []string `yaml:"exclude"`
}

// Train holds the co-occurrence trainer's knobs (spec.md §6 "train" group).
type Train struct {
	CoocWindowSize  int     `yaml:"cooc_window_size"`
	SaliencePercent float64 `yaml:"salience_percent"`
	SalienceMin     int     `yaml:"salience_min"`
	SalienceMax     int     `yaml:"salience_max"`
}

// Query holds the scorer's default knobs (spec.md §6 "query" group).
type Query struct {
	TopK          int     `yaml:"top_k"`
	MaxCandidates int     `yaml:"max_candidates"`
	ExpansionTopK int     `yaml:"expansion_top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	MaxDFPercent  float64 `yaml:"max_df_percent"`
	WIDF          float64 `yaml:"w_idf"`
	WFeedback     float64 `yaml:"w_feedback"`
	ClusterMode   string  `yaml:"cluster_mode"`
}

// ResolvedClusterMode maps the configured string to the typed enum,
// defaulting to centroid mode on an unrecognized value.
func (q Query) ResolvedClusterMode() types.ClusterMode {
	if q.ClusterMode == string(types.ClusterConcentration) {
		return types.ClusterConcentration
	}
	return types.ClusterCentroid
}

// Default returns the built-in configuration (spec.md §6 defaults table),
// rooted at cwd.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Project: Project{
			Root:     cwd,
			CacheDir: filepath.Join(cwd, ".cache"),
			DBPath:   filepath.Join(cwd, ".cache", "xerp.db"),
		},
		Index: Index{
			TabWidth:         DefaultTabWidth,
			MaxTokenLen:      DefaultMaxTokenLen,
			MaxBlockLines:    DefaultMaxBlockLines,
			WindowSize:       DefaultWindowSize,
			WindowOverlap:    DefaultWindowOverlap,
			MaxFileSizeBytes: 1 << 20, // 1 MiB, spec.md §7.2 binary/size rejection
			MaxFileCount:     0,       // 0 = unbounded
			ParallelWorkers:  runtime.NumCPU(),
			Include:          []string{"**/*"},
			Exclude: []string{
				"**/.git/**",
				"**/.cache/**",
				"**/node_modules/**",
				"**/vendor/**",
				"**/dist/**",
				"**/build/**",
			},
		},
		Train: Train{
			CoocWindowSize:  DefaultCoocWindowSize,
			SaliencePercent: DefaultSaliencePercent,
			SalienceMin:     DefaultSalienceMin,
			SalienceMax:     DefaultSalienceMax,
		},
		Query: Query{
			TopK:          DefaultTopK,
			MaxCandidates: DefaultMaxCandidates,
			ExpansionTopK: DefaultExpansionTopK,
			MinSimilarity: DefaultMinSimilarity,
			MaxDFPercent:  DefaultMaxDFPercent,
			WIDF:          DefaultWIDF,
			WFeedback:     DefaultWFeedback,
			ClusterMode:   DefaultClusterModeName,
		},
	}
}

// Load reads `<root>/.config/xerp.yaml` if present, overlays it onto
// Default(), then applies the XERP_ROOT / XERP_DB_PATH environment overrides
// (spec.md §6: "Loaded from <root>/.config/xerp.yaml with env-var overrides
// XERP_ROOT, XERP_DB_PATH").
func Load(root string) (*Config, error) {
	return LoadFrom(root, "")
}

// LoadFrom is Load, but reads the YAML overlay from explicitConfigPath
// instead of the computed `<root>/.config/xerp.yaml` when explicitConfigPath
// is non-empty (the CLI's global `--config PATH` flag).
func LoadFrom(root, explicitConfigPath string) (*Config, error) {
	if root == "" {
		root = "."
	}
	if envRoot := os.Getenv("XERP_ROOT"); envRoot != "" {
		root = envRoot
	}

	cfg := Default()
	cfg.Project.Root = root
	cfg.Project.CacheDir = filepath.Join(root, ".cache")
	cfg.Project.DBPath = filepath.Join(root, ".cache", "xerp.db")

	cfgPath := explicitConfigPath
	if cfgPath == "" {
		cfgPath = filepath.Join(root, ".config", "xerp.yaml")
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) && explicitConfigPath == "" {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, xerrors.NewInputError(cfgPath, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, xerrors.NewInputError(cfgPath, err)
	}
	mergeOverlay(cfg, &overlay)
	applyEnv(cfg)
	return cfg, nil
}

// mergeOverlay applies every non-zero field of overlay onto base in place.
// Slices (Include/Exclude) replace rather than append, since an explicit
// YAML list is meant to be a complete replacement of the default list.
func mergeOverlay(base *Config, overlay *Config) {
	if overlay.Project.Root != "" {
		base.Project.Root = overlay.Project.Root
	}
	if overlay.Project.CacheDir != "" {
		base.Project.CacheDir = overlay.Project.CacheDir
	}
	if overlay.Project.DBPath != "" {
		base.Project.DBPath = overlay.Project.DBPath
	}

	if overlay.Index.TabWidth != 0 {
		base.Index.TabWidth = overlay.Index.TabWidth
	}
	if overlay.Index.MaxTokenLen != 0 {
		base.Index.MaxTokenLen = overlay.Index.MaxTokenLen
	}
	if overlay.Index.MaxBlockLines != 0 {
		base.Index.MaxBlockLines = overlay.Index.MaxBlockLines
	}
	if overlay.Index.WindowSize != 0 {
		base.Index.WindowSize = overlay.Index.WindowSize
	}
	if overlay.Index.WindowOverlap != 0 {
		base.Index.WindowOverlap = overlay.Index.WindowOverlap
	}
	if overlay.Index.MaxFileSizeBytes != 0 {
		base.Index.MaxFileSizeBytes = overlay.Index.MaxFileSizeBytes
	}
	if overlay.Index.MaxFileCount != 0 {
		base.Index.MaxFileCount = overlay.Index.MaxFileCount
	}
	if overlay.Index.ParallelWorkers != 0 {
		base.Index.ParallelWorkers = overlay.Index.ParallelWorkers
	}
	if len(overlay.Index.Include) > 0 {
		base.Index.Include = overlay.Index.Include
	}
	if len(overlay.Index.Exclude) > 0 {
		base.Index.Exclude = overlay.Index.Exclude
	}

	if overlay.Train.CoocWindowSize != 0 {
		base.Train.CoocWindowSize = overlay.Train.CoocWindowSize
	}
	if overlay.Train.SaliencePercent != 0 {
		base.Train.SaliencePercent = overlay.Train.SaliencePercent
	}
	if overlay.Train.SalienceMin != 0 {
		base.Train.SalienceMin = overlay.Train.SalienceMin
	}
	if overlay.Train.SalienceMax != 0 {
		base.Train.SalienceMax = overlay.Train.SalienceMax
	}

	if overlay.Query.TopK != 0 {
		base.Query.TopK = overlay.Query.TopK
	}
	if overlay.Query.MaxCandidates != 0 {
		base.Query.MaxCandidates = overlay.Query.MaxCandidates
	}
	if overlay.Query.ExpansionTopK != 0 {
		base.Query.ExpansionTopK = overlay.Query.ExpansionTopK
	}
	if overlay.Query.MinSimilarity != 0 {
		base.Query.MinSimilarity = overlay.Query.MinSimilarity
	}
	if overlay.Query.MaxDFPercent != 0 {
		base.Query.MaxDFPercent = overlay.Query.MaxDFPercent
	}
	if overlay.Query.WIDF != 0 {
		base.Query.WIDF = overlay.Query.WIDF
	}
	if overlay.Query.WFeedback != 0 {
		base.Query.WFeedback = overlay.Query.WFeedback
	}
	if overlay.Query.ClusterMode != "" {
		base.Query.ClusterMode = overlay.Query.ClusterMode
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("XERP_ROOT"); v != "" {
		cfg.Project.Root = v
	}
	if v := os.Getenv("XERP_DB_PATH"); v != "" {
		cfg.Project.DBPath = v
	}
}
