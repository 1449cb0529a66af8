package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Corpus   CorpusConfig  `mapstructure:"corpus"`
	Trainer  TrainerConfig `mapstructure:"trainer"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	Corpus           string `mapstructure:"corpus"`
	Intermediate     string `mapstructure:"intermediate"`
	Output           string `mapstructure:"output"`
	Manifest         string `mapstructure:"manifest"`
	KeepIntermediate bool   `mapstructure:"keep_intermediate"`
}

type CorpusConfig struct {
	Field string `mapstructure:"field"`
}

type TrainerConfig struct {
	VocabSize       int      `mapstructure:"vocab_size"`
	MinFrequency    int      `mapstructure:"min_frequency"`
	ShowProgress    bool     `mapstructure:"show_progress"`
	SpecialTokens   []string `mapstructure:"special_tokens"`
	UnkToken        string   `mapstructure:"unk_token"`
	ClsToken        string   `mapstructure:"cls_token"`
	SepToken        string   `mapstructure:"sep_token"`
	EndOfWordSuffix string   `mapstructure:"end_of_word_suffix"`
	Workers         int      `mapstructure:"workers"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// flagKeys maps each registered flag to its nested config key.
var flagKeys = map[string]string{
	"paths-corpus":               "paths.corpus",
	"paths-intermediate":         "paths.intermediate",
	"paths-output":               "paths.output",
	"paths-manifest":             "paths.manifest",
	"paths-keep-intermediate":    "paths.keep_intermediate",
	"corpus-field":               "corpus.field",
	"trainer-vocab-size":         "trainer.vocab_size",
	"trainer-min-frequency":      "trainer.min_frequency",
	"trainer-show-progress":      "trainer.show_progress",
	"trainer-special-tokens":     "trainer.special_tokens",
	"trainer-unk-token":          "trainer.unk_token",
	"trainer-cls-token":          "trainer.cls_token",
	"trainer-sep-token":          "trainer.sep_token",
	"trainer-end-of-word-suffix": "trainer.end_of_word_suffix",
	"trainer-workers":            "trainer.workers",
	"log-level":                  "log_level",
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			Corpus:           "BIBLE_EXTENDED_CORPUS.json",
			Intermediate:     "ghomala_corpus.txt",
			Output:           "ghomala_tokenizer.json",
			Manifest:         "ghomala_tokenizer.manifest.json",
			KeepIntermediate: true,
		},
		Corpus: CorpusConfig{
			Field: "Ghomala translation",
		},
		Trainer: TrainerConfig{
			VocabSize:       8000,
			MinFrequency:    2,
			ShowProgress:    true,
			SpecialTokens:   []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]"},
			UnkToken:        "[UNK]",
			ClsToken:        "[CLS]",
			SepToken:        "[SEP]",
			EndOfWordSuffix: "</w>",
			Workers:         1,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-corpus", defaults.Paths.Corpus, "Path to the JSON translation corpus")
	fs.String("paths-intermediate", defaults.Paths.Intermediate, "Path of the one-sentence-per-line training file")
	fs.String("paths-output", defaults.Paths.Output, "Path of the trained tokenizer JSON artifact")
	fs.String("paths-manifest", defaults.Paths.Manifest, "Path of the training manifest (empty disables)")
	fs.Bool("paths-keep-intermediate", defaults.Paths.KeepIntermediate, "Keep the intermediate training file after a successful run")
	fs.String("corpus-field", defaults.Corpus.Field, "Record key holding the target-language sentence")
	fs.Int("trainer-vocab-size", defaults.Trainer.VocabSize, "Vocabulary size ceiling, special tokens included")
	fs.Int("trainer-min-frequency", defaults.Trainer.MinFrequency, "Minimum pair frequency for a merge")
	fs.Bool("trainer-show-progress", defaults.Trainer.ShowProgress, "Render a merge progress bar on stderr")
	fs.StringSlice("trainer-special-tokens", defaults.Trainer.SpecialTokens, "Special tokens in id order")
	fs.String("trainer-unk-token", defaults.Trainer.UnkToken, "Special token standing in for unknown characters")
	fs.String("trainer-cls-token", defaults.Trainer.ClsToken, "Special token opening every encoded sequence")
	fs.String("trainer-sep-token", defaults.Trainer.SepToken, "Special token closing every encoded sequence")
	fs.String("trainer-end-of-word-suffix", defaults.Trainer.EndOfWordSuffix, "Suffix marking the last symbol of a word")
	fs.Int("trainer-workers", defaults.Trainer.Workers, "Goroutines used to count words")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("GHOMALATOK")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ghomalatok")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate reports every setting that would make a training run
// meaningless before any file is touched.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Paths.Corpus) == "" {
		errs = append(errs, errors.New("paths.corpus must not be empty"))
	}
	if strings.TrimSpace(c.Paths.Intermediate) == "" {
		errs = append(errs, errors.New("paths.intermediate must not be empty"))
	}
	if strings.TrimSpace(c.Paths.Output) == "" {
		errs = append(errs, errors.New("paths.output must not be empty"))
	}
	if c.Corpus.Field == "" {
		errs = append(errs, errors.New("corpus.field must not be empty"))
	}
	if len(c.Trainer.SpecialTokens) == 0 {
		errs = append(errs, errors.New("trainer.special_tokens must not be empty"))
	}
	for _, role := range []struct{ key, tok string }{
		{"trainer.unk_token", c.Trainer.UnkToken},
		{"trainer.cls_token", c.Trainer.ClsToken},
		{"trainer.sep_token", c.Trainer.SepToken},
	} {
		if !slices.Contains(c.Trainer.SpecialTokens, role.tok) {
			errs = append(errs, fmt.Errorf("%s %q must be one of trainer.special_tokens %v",
				role.key, role.tok, c.Trainer.SpecialTokens))
		}
	}
	if c.Trainer.VocabSize <= len(c.Trainer.SpecialTokens) {
		errs = append(errs, fmt.Errorf("trainer.vocab_size %d must exceed the %d special tokens",
			c.Trainer.VocabSize, len(c.Trainer.SpecialTokens)))
	}
	if c.Trainer.MinFrequency < 1 {
		errs = append(errs, fmt.Errorf("trainer.min_frequency %d must be at least 1", c.Trainer.MinFrequency))
	}
	if c.Trainer.Workers < 1 {
		errs = append(errs, fmt.Errorf("trainer.workers %d must be at least 1", c.Trainer.Workers))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseLogLevel maps a level name to its slog level. Unknown names return
// LevelInfo together with an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.corpus", c.Paths.Corpus)
	v.SetDefault("paths.intermediate", c.Paths.Intermediate)
	v.SetDefault("paths.output", c.Paths.Output)
	v.SetDefault("paths.manifest", c.Paths.Manifest)
	v.SetDefault("paths.keep_intermediate", c.Paths.KeepIntermediate)
	v.SetDefault("corpus.field", c.Corpus.Field)
	v.SetDefault("trainer.vocab_size", c.Trainer.VocabSize)
	v.SetDefault("trainer.min_frequency", c.Trainer.MinFrequency)
	v.SetDefault("trainer.show_progress", c.Trainer.ShowProgress)
	v.SetDefault("trainer.special_tokens", c.Trainer.SpecialTokens)
	v.SetDefault("trainer.unk_token", c.Trainer.UnkToken)
	v.SetDefault("trainer.cls_token", c.Trainer.ClsToken)
	v.SetDefault("trainer.sep_token", c.Trainer.SepToken)
	v.SetDefault("trainer.end_of_word_suffix", c.Trainer.EndOfWordSuffix)
	v.SetDefault("trainer.workers", c.Trainer.Workers)
	v.SetDefault("log_level", c.LogLevel)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}
