// Package cfg 从配置文件加载结构化选项
//
// 文件按扩展名选择解码器（yaml/yml、json、toml），先解码为通用 map，
// 再按 cfg tag 映射到结构体，随后补齐 def tag 默认值并执行 validate tag 校验。
package cfg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Decoder 将原始字节解码为通用数据
type Decoder func(data []byte) (map[string]any, error)

var decoders = map[string]Decoder{
	".yaml": decodeYaml,
	".yml":  decodeYaml,
	".json": decodeJson,
	".toml": decodeToml,
}

// Load 读取 path 指向的配置文件并填充 object
func Load(path string, object any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return errors.Errorf("unsupported config format %q", ext)
	}

	m, err := decode(data)
	if err != nil {
		return errors.WithMessagef(err, "decode config file %s", path)
	}

	return Apply(m, object)
}

// Apply 将通用数据映射到 object，补齐默认值并校验
func Apply(m map[string]any, object any) error {
	if err := Decode(m, object); err != nil {
		return err
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "set defaults")
	}
	if err := ValidateStruct(object); err != nil {
		return errors.Wrap(err, "validate config")
	}
	return nil
}

// Decode 按 cfg tag 将 m 映射到 object，不处理默认值
func Decode(m map[string]any, object any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "cfg",
		Result:           object,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, "create decoder")
	}
	if err := decoder.Decode(m); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

func decodeYaml(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode YAML")
	}
	return m, nil
}

func decodeJson(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode JSON")
	}
	return m, nil
}

func decodeToml(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode TOML")
	}
	return m, nil
}
