package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StrategyProfile 把一套策略及参数命名打包，便于在配置/接口里引用。
type StrategyProfile struct {
	Name     string             `yaml:"-"`
	Strategy string             `yaml:"strategy"`
	Params   map[string]float64 `yaml:"params"`
	Note     string             `yaml:"note"`
}

type profilesFile struct {
	Profiles map[string]StrategyProfile `yaml:"profiles"`
}

// LoadProfiles 读取 YAML 策略档案文件。
func LoadProfiles(path string) (map[string]StrategyProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles failed (%s): %w", path, err)
	}
	var file profilesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing profiles failed (%s): %w", path, err)
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("profiles file is empty: %s", path)
	}
	out := make(map[string]StrategyProfile, len(file.Profiles))
	for name, p := range file.Profiles {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		p.Name = key
		if strings.TrimSpace(p.Strategy) == "" {
			return nil, fmt.Errorf("profile %s missing strategy", name)
		}
		out[key] = p
	}
	return out, nil
}

// ResolveProfile 按名字取档案，名字大小写不敏感。
func ResolveProfile(profiles map[string]StrategyProfile, name string) (StrategyProfile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	p, ok := profiles[key]
	if !ok {
		return StrategyProfile{}, fmt.Errorf("unknown profile: %s", name)
	}
	return p, nil
}
