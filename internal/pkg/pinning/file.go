package pinning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// pinsFile 是 pins.yaml 的顶层结构。
type pinsFile struct {
	Pins []PinSet `yaml:"pins"`
}

// LoadFile 从 YAML 文件加载固定配置并逐条校验。
// 任意一条非法即整体失败，避免部分加载造成的静默缺口。
func LoadFile(path string) ([]PinSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pins file: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes 解析 YAML 格式的 pins 内容，语义与 LoadFile 一致。
func ParseBytes(data []byte) ([]PinSet, error) {
	var f pinsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse pins file: %w", err)
	}
	for i := range f.Pins {
		if err := f.Pins[i].Validate(); err != nil {
			return nil, fmt.Errorf("pins file entry %d: %w", i, err)
		}
	}
	return f.Pins, nil
}
