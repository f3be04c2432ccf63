package descriptor

import (
	"encoding/json"
	"slices"
	"strings"
)

// SnapshotSuffix 是快照版本追加到基础版本后的后缀。
const SnapshotSuffix = "-SNAPSHOT"

// Scope 表示依赖在构建中的可见范围。
type Scope string

const (
	ScopeAPI            Scope = "api"
	ScopeImplementation Scope = "implementation"
	ScopeTestOnly       Scope = "testOnly"
)

// parseScope 规范化依赖范围，空值视为 implementation。
func parseScope(raw string) (Scope, bool) {
	switch strings.TrimSpace(raw) {
	case "", "implementation":
		return ScopeImplementation, true
	case "api":
		return ScopeAPI, true
	case "testOnly", "testImplementation":
		return ScopeTestOnly, true
	default:
		return "", false
	}
}

// Dependency 是一条带范围的依赖声明。
type Dependency struct {
	Coordinate string `json:"coordinate" yaml:"coordinate"`
	Scope      Scope  `json:"scope" yaml:"scope"`
}

// Descriptor 是解析后的构建描述，创建后不可修改。
type Descriptor struct {
	plugins         []string
	group           string
	baseVersion     string
	snapshot        bool
	version         string
	repositories    []string
	dependencies    []Dependency
	languageVersion int
	publication     string
	sourcesJar      bool
	javadocJar      bool
	encoding        string
}

// Plugins 返回排序后的插件标识。
func (d *Descriptor) Plugins() []string { return slices.Clone(d.plugins) }

// Group 返回组标识。
func (d *Descriptor) Group() string { return d.group }

// BaseVersion 返回未加后缀的版本号。
func (d *Descriptor) BaseVersion() string { return d.baseVersion }

// Snapshot 表示是否为快照版本。
func (d *Descriptor) Snapshot() bool { return d.snapshot }

// Version 返回生效版本号。
func (d *Descriptor) Version() string { return d.version }

// Repositories 按声明顺序返回仓库地址。
func (d *Descriptor) Repositories() []string { return slices.Clone(d.repositories) }

// Dependencies 按声明顺序返回依赖。
func (d *Descriptor) Dependencies() []Dependency { return slices.Clone(d.dependencies) }

// DependenciesIn 返回指定范围内的依赖坐标。
func (d *Descriptor) DependenciesIn(scope Scope) []string {
	var coords []string
	for _, dep := range d.dependencies {
		if dep.Scope == scope {
			coords = append(coords, dep.Coordinate)
		}
	}
	return coords
}

// LanguageVersion 返回目标语言版本。
func (d *Descriptor) LanguageVersion() int { return d.languageVersion }

// Publication 返回发布目标名称。
func (d *Descriptor) Publication() string { return d.publication }

// SourcesJar 表示是否同时发布源码包。
func (d *Descriptor) SourcesJar() bool { return d.sourcesJar }

// JavadocJar 表示是否同时发布文档包。
func (d *Descriptor) JavadocJar() bool { return d.javadocJar }

// Encoding 返回源码编码。
func (d *Descriptor) Encoding() string { return d.encoding }

// Coordinate 返回 group:version 形式的发布坐标。
func (d *Descriptor) Coordinate() string { return d.group + ":" + d.version }

// Equal 判断两个描述是否在结构上相等。
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.group == other.group &&
		d.baseVersion == other.baseVersion &&
		d.snapshot == other.snapshot &&
		d.version == other.version &&
		d.languageVersion == other.languageVersion &&
		d.publication == other.publication &&
		d.sourcesJar == other.sourcesJar &&
		d.javadocJar == other.javadocJar &&
		d.encoding == other.encoding &&
		slices.Equal(d.plugins, other.plugins) &&
		slices.Equal(d.repositories, other.repositories) &&
		slices.Equal(d.dependencies, other.dependencies)
}

type descriptorView struct {
	Plugins         []string     `json:"plugins" yaml:"plugins"`
	Group           string       `json:"group" yaml:"group"`
	BaseVersion     string       `json:"baseVersion" yaml:"baseVersion"`
	Snapshot        bool         `json:"snapshot" yaml:"snapshot"`
	Version         string       `json:"version" yaml:"version"`
	Repositories    []string     `json:"repositories" yaml:"repositories"`
	Dependencies    []Dependency `json:"dependencies" yaml:"dependencies"`
	LanguageVersion int          `json:"languageVersion" yaml:"languageVersion"`
	Publication     string       `json:"publication,omitempty" yaml:"publication,omitempty"`
	SourcesJar      bool         `json:"sourcesJar" yaml:"sourcesJar"`
	JavadocJar      bool         `json:"javadocJar" yaml:"javadocJar"`
	Encoding        string       `json:"encoding" yaml:"encoding"`
}

func (d *Descriptor) view() descriptorView {
	return descriptorView{
		Plugins:         d.Plugins(),
		Group:           d.group,
		BaseVersion:     d.baseVersion,
		Snapshot:        d.snapshot,
		Version:         d.version,
		Repositories:    d.Repositories(),
		Dependencies:    d.Dependencies(),
		LanguageVersion: d.languageVersion,
		Publication:     d.publication,
		SourcesJar:      d.sourcesJar,
		JavadocJar:      d.javadocJar,
		Encoding:        d.encoding,
	}
}

// MarshalJSON 输出规范化后的描述。
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.view())
}

// MarshalYAML 实现 yaml.Marshaler。
func (d *Descriptor) MarshalYAML() (any, error) {
	if d == nil {
		return nil, nil
	}
	return d.view(), nil
}
