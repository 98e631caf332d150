package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load 读取 yaml 配置（支持 include 链），套默认值后做校验。
// include 里的文件先合并，主文件最后合并，所以主文件的值总是赢。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := includeWalker{seen: map[string]bool{}, active: map[string]bool{}}
	files, err := w.walk(abs)
	if err != nil {
		return nil, err
	}

	merged := viper.New()
	merged.SetConfigType("yaml")
	for _, file := range files {
		one := viper.New()
		one.SetConfigFile(file)
		if err := one.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
		if err := merged.MergeConfigMap(one.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging config file failed (%s): %w", file, err)
		}
	}

	var cfg Config
	if err := merged.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	// viper 分不清「没写」和「写了零值」，所以单独记下文件里真正出现过的 key，
	// applyDefaults 只给没出现过的 key 填默认值。
	explicit := make(keySet)
	markExplicit("", merged.AllSettings(), explicit)
	cfg.applyDefaults(explicit)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// includeWalker 按依赖序展开 include，active 集合用来发现环。
type includeWalker struct {
	seen   map[string]bool
	active map[string]bool
}

func (w *includeWalker) walk(path string) ([]string, error) {
	path = filepath.Clean(path)
	if w.active[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if w.seen[path] {
		return nil, nil
	}
	w.active[path] = true
	defer delete(w.active, path)

	includes, err := readIncludes(path)
	if err != nil {
		return nil, fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	var ordered []string
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		sub, err := w.walk(inc)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sub...)
	}
	w.seen[path] = true
	return append(ordered, path), nil
}

func readIncludes(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		if strs, ok := raw.([]string); ok {
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		} else {
			return nil, fmt.Errorf("include must be a string array")
		}
	}
	var out []string
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

// markExplicit 把 settings 树拍平成 "a.b.c" 形式记入 ks。
// 列表和标量都算显式赋值；yaml 深层节点可能是 map[interface{}]interface{}。
func markExplicit(prefix string, node any, ks keySet) {
	push := func(k string, v any) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return
		}
		if prefix != "" {
			k = prefix + "." + k
		}
		markExplicit(k, v, ks)
	}
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			push(k, v)
		}
	case map[interface{}]interface{}:
		for k, v := range val {
			if str, ok := k.(string); ok {
				push(str, v)
			}
		}
	case []any:
		if prefix != "" {
			ks.mark(prefix)
		}
		for _, item := range val {
			markExplicit(prefix, item, ks)
		}
	default:
		if prefix != "" {
			ks.mark(prefix)
		}
	}
}

// universeFile 的最简结构：symbols 列表。
type universeFile struct {
	Symbols []string `yaml:"symbols"`
}

// LoadUniverse 读取 symbol 清单，去重并按字典序排序。
func LoadUniverse(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading universe file failed: %w", err)
	}
	var uf universeFile
	if err := yaml.Unmarshal(raw, &uf); err != nil {
		return nil, fmt.Errorf("parsing universe file failed (%s): %w", path, err)
	}
	seen := make(map[string]bool, len(uf.Symbols))
	out := make([]string, 0, len(uf.Symbols))
	for _, sym := range uf.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("universe file %s contains no symbols", path)
	}
	sort.Strings(out)
	return out, nil
}
