package descriptor

import (
	"fmt"
	"slices"
	"strings"
)

const (
	defaultLanguageVersion = 17
	defaultEncoding        = "UTF-8"
)

// repositoryAliases 将常见的仓库别名展开为地址。
var repositoryAliases = map[string]string{
	"mavenCentral": "https://repo.maven.apache.org/maven2/",
	"jitpack":      "https://jitpack.io",
	"google":       "https://maven.google.com/",
}

// Resolve 校验原始声明并生成不可变的 Descriptor。
//
// group 与 version 为必填项，缺失时返回 *ConfigError。生效版本为基础版本
// 直接拼接快照后缀，不做去重。
func Resolve(raw Raw) (*Descriptor, error) {
	group := strings.TrimSpace(raw.Group)
	if group == "" {
		return nil, newConfigError("group", "group identifier is required")
	}
	base := strings.TrimSpace(raw.Version)
	if base == "" {
		return nil, newConfigError("version", "base version is required")
	}
	if raw.LanguageVersion < 0 {
		return nil, newConfigError("languageVersion", fmt.Sprintf("language version %d is negative", raw.LanguageVersion))
	}

	deps, err := normalizeDependencies(raw.Dependencies)
	if err != nil {
		return nil, err
	}

	version := base
	if raw.Snapshot {
		version += SnapshotSuffix
	}

	language := raw.LanguageVersion
	if language == 0 {
		language = defaultLanguageVersion
	}
	encoding := strings.TrimSpace(raw.Encoding)
	if encoding == "" {
		encoding = defaultEncoding
	}

	return &Descriptor{
		plugins:         normalizePlugins(raw.Plugins),
		group:           group,
		baseVersion:     base,
		snapshot:        raw.Snapshot,
		version:         version,
		repositories:    normalizeRepositories(raw.Repositories),
		dependencies:    deps,
		languageVersion: language,
		publication:     strings.TrimSpace(raw.Publication),
		sourcesJar:      raw.SourcesJar,
		javadocJar:      raw.JavadocJar,
		encoding:        encoding,
	}, nil
}

func normalizePlugins(plugins []string) []string {
	out := make([]string, 0, len(plugins))
	for _, p := range plugins {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func normalizeRepositories(repos []string) []string {
	seen := make(map[string]struct{}, len(repos))
	out := make([]string, 0, len(repos))
	for _, repo := range repos {
		repo = strings.TrimSpace(repo)
		if repo == "" {
			continue
		}
		if url, ok := repositoryAliases[repo]; ok {
			repo = url
		}
		if _, dup := seen[repo]; dup {
			continue
		}
		seen[repo] = struct{}{}
		out = append(out, repo)
	}
	return out
}

func normalizeDependencies(raw []RawDependency) ([]Dependency, error) {
	deps := make([]Dependency, 0, len(raw))
	for i, dep := range raw {
		coordinate := strings.TrimSpace(dep.Coordinate)
		if coordinate == "" {
			return nil, newConfigError(fmt.Sprintf("dependencies[%d].coordinate", i), "coordinate is required")
		}
		scope, ok := parseScope(dep.Scope)
		if !ok {
			return nil, newConfigError(fmt.Sprintf("dependencies[%d].scope", i), fmt.Sprintf("unknown scope %q", dep.Scope))
		}
		deps = append(deps, Dependency{Coordinate: coordinate, Scope: scope})
	}
	return deps, nil
}
