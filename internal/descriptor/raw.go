package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format 表示描述文件的编码格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// RawDependency 是描述文件中的一条依赖声明。
type RawDependency struct {
	Coordinate string `json:"coordinate" yaml:"coordinate"`
	Scope      string `json:"scope" yaml:"scope"`
}

// Raw 是描述文件中的原始键值声明，尚未经过校验。
type Raw struct {
	Plugins         []string        `json:"plugins" yaml:"plugins"`
	Group           string          `json:"group" yaml:"group"`
	Version         string          `json:"version" yaml:"version"`
	Snapshot        bool            `json:"snapshot" yaml:"snapshot"`
	Repositories    []string        `json:"repositories" yaml:"repositories"`
	Dependencies    []RawDependency `json:"dependencies" yaml:"dependencies"`
	LanguageVersion int             `json:"languageVersion" yaml:"languageVersion"`
	Publication     string          `json:"publication" yaml:"publication"`
	SourcesJar      bool            `json:"sourcesJar" yaml:"sourcesJar"`
	JavadocJar      bool            `json:"javadocJar" yaml:"javadocJar"`
	Encoding        string          `json:"encoding" yaml:"encoding"`
}

// FormatFromPath 根据扩展名推断描述文件格式，未知扩展名按 YAML 处理。
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile 读取并解码指定路径的描述文件。
func LoadFile(path string) (Raw, error) {
	if strings.TrimSpace(path) == "" {
		return Raw{}, errors.New("descriptor path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return Raw{}, fmt.Errorf("open descriptor: %w", err)
	}
	defer file.Close()

	raw, err := Decode(file, FormatFromPath(path))
	if err != nil {
		return Raw{}, fmt.Errorf("decode descriptor %s: %w", path, err)
	}
	return raw, nil
}

// Decode 按给定格式解码描述内容，空输入得到零值 Raw。
func Decode(r io.Reader, format Format) (Raw, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Raw{}, err
	}
	var raw Raw
	if len(strings.TrimSpace(string(content))) == 0 {
		return raw, nil
	}
	switch format {
	case FormatJSON:
		err = json.Unmarshal(content, &raw)
	case FormatYAML, "":
		err = yaml.Unmarshal(content, &raw)
	default:
		return Raw{}, fmt.Errorf("unknown descriptor format %q", format)
	}
	if err != nil {
		return Raw{}, err
	}
	return raw, nil
}
