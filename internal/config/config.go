package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"github.com/merge-o-matic/mom/internal/env"
	"github.com/spf13/viper"
)

var (
	vCfg   = viper.New()
	cfgDir string
)

const (
	LeftLabelKey        = "labels.left"
	RightLabelKey       = "labels.right"
	Diff3Key            = "tools.diff3"
	MsgMergeKey         = "tools.msgmerge"
	MsgCatKey           = "tools.msgcat"
	TextMergerKey       = "merge.text_merger"
	MetadataFileKey     = "merge.metadata_file"
	ChangelogFileKey    = "merge.changelog_file"
	BatchConcurrencyKey = "batch.concurrency"
	MinVersionKey       = "min_version"
)

const (
	TextMergerExternal = "external"
	TextMergerBuiltin  = "builtin"
)

var defaults = map[string]any{
	LeftLabelKey:        "LEFT",
	RightLabelKey:       "RIGHT",
	Diff3Key:            "diff3",
	MsgMergeKey:         "msgmerge",
	MsgCatKey:           "msgcat",
	TextMergerKey:       TextMergerExternal,
	MetadataFileKey:     "debian/control",
	ChangelogFileKey:    "debian/changelog",
	BatchConcurrencyKey: 4,
}

// Load reads config.yaml from the configuration directory, $MOM_HOME or
// ~/.mom. A missing file leaves every key at its default.
func Load() error {
	dir := env.HomeDir()
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".mom")
	}

	return LoadFrom(dir)
}

// LoadFrom is Load with an explicit configuration directory.
func LoadFrom(dir string) error {
	cfgDir = dir

	vCfg = viper.New()
	vCfg.SetConfigName("config")
	vCfg.SetConfigType("yaml")
	vCfg.AddConfigPath(cfgDir)

	vCfg.SetEnvPrefix("MOM")
	vCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vCfg.AutomaticEnv()

	for k, v := range defaults {
		vCfg.SetDefault(k, v)
	}

	if err := vCfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return nil
}

func Dir() string {
	return cfgDir
}

func LeftLabel() string {
	return vCfg.GetString(LeftLabelKey)
}

func RightLabel() string {
	return vCfg.GetString(RightLabelKey)
}

func Diff3Tool() string {
	return vCfg.GetString(Diff3Key)
}

func MsgMergeTool() string {
	return vCfg.GetString(MsgMergeKey)
}

func MsgCatTool() string {
	return vCfg.GetString(MsgCatKey)
}

func TextMerger() string {
	return vCfg.GetString(TextMergerKey)
}

func MetadataFile() string {
	return vCfg.GetString(MetadataFileKey)
}

func ChangelogFile() string {
	return vCfg.GetString(ChangelogFileKey)
}

func BatchConcurrency() int {
	return vCfg.GetInt(BatchConcurrencyKey)
}

func MinVersion() string {
	return vCfg.GetString(MinVersionKey)
}

// Set overrides a key for the rest of the process, the way a command-line
// flag does.
func Set(key string, value any) {
	vCfg.Set(key, value)
}

// Validate reports every invalid setting at once.
func Validate() error {
	var errs *multierror.Error

	left, right := LeftLabel(), RightLabel()
	for key, label := range map[string]string{LeftLabelKey: left, RightLabelKey: right} {
		if err := validateLabel(label); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if left != "" && strings.EqualFold(left, right) {
		errs = multierror.Append(errs, fmt.Errorf("%s and %s must differ, got %q for both", LeftLabelKey, RightLabelKey, left))
	}

	switch TextMerger() {
	case TextMergerExternal, TextMergerBuiltin:
	default:
		errs = multierror.Append(errs, fmt.Errorf("%s must be %q or %q, got %q", TextMergerKey, TextMergerExternal, TextMergerBuiltin, TextMerger()))
	}

	for _, key := range []string{MetadataFileKey, ChangelogFileKey} {
		if err := validateTreePath(vCfg.GetString(key)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if n := BatchConcurrency(); n < 1 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be at least 1, got %d", BatchConcurrencyKey, n))
	}

	if mv := MinVersion(); mv != "" {
		if _, err := version.NewVersion(mv); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", MinVersionKey, err))
		}
	}

	return errs.ErrorOrNil()
}

func validateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("must not be empty")
	}
	if strings.ContainsAny(label, "/\\ \t\n") {
		return fmt.Errorf("%q cannot be used in a file name", label)
	}
	return nil
}

func validateTreePath(p string) error {
	if p == "" {
		return fmt.Errorf("must not be empty")
	}
	if path.IsAbs(p) || path.Clean(p) != p || strings.HasPrefix(p, "../") {
		return fmt.Errorf("%q must be a clean path relative to the tree root", p)
	}
	return nil
}

// CheckMinVersion fails when the running binary is older than min_version.
func CheckMinVersion(current string) error {
	mv := MinVersion()
	if mv == "" {
		return nil
	}

	minVer, err := version.NewVersion(mv)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", MinVersionKey, err)
	}
	curVer, err := version.NewVersion(current)
	if err != nil {
		return fmt.Errorf("cannot compare version %q with %s: %w", current, MinVersionKey, err)
	}

	if curVer.LessThan(minVer) {
		return fmt.Errorf("mom %s is older than the configured minimum %s", curVer, minVer)
	}
	return nil
}
