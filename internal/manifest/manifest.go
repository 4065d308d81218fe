// Package manifest reads dbt manifest artifacts (target/manifest.json)
// into the model records the governance engine evaluates.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// FileName is the manifest file name inside the dbt target directory.
const FileName = "manifest.json"

// Errors returned by the loader.
var (
	ErrNotFound         = errors.New("manifest not found")
	ErrInvalid          = errors.New("invalid manifest")
	ErrDuplicateProject = errors.New("duplicate project")
)

// Project is one loaded dbt project.
type Project struct {
	// ID is the dbt project name, or the directory name when the manifest has none
	ID string
	// Dir is the project directory
	Dir string
	// ManifestPath is the manifest that was read
	ManifestPath string
	// DbtVersion is the dbt version that wrote the manifest
	DbtVersion string
	// Models are sorted by unique id
	Models []*core.Model
}

type document struct {
	Metadata struct {
		ProjectName string `json:"project_name"`
		DbtVersion  string `json:"dbt_version"`
	} `json:"metadata"`
	Nodes map[string]node `json:"nodes"`
}

type node struct {
	UniqueID         string         `json:"unique_id"`
	ResourceType     string         `json:"resource_type"`
	Name             string         `json:"name"`
	PackageName      string         `json:"package_name"`
	Path             string         `json:"path"`
	OriginalFilePath string         `json:"original_file_path"`
	Description      string         `json:"description"`
	Tags             []string       `json:"tags"`
	Meta             map[string]any `json:"meta"`
	Config           struct {
		Tags []string       `json:"tags"`
		Meta map[string]any `json:"meta"`
	} `json:"config"`
	DependsOn struct {
		Nodes []string `json:"nodes"`
	} `json:"depends_on"`
	AttachedNode string        `json:"attached_node"`
	ColumnName   string        `json:"column_name"`
	TestMetadata *testMetadata `json:"test_metadata"`
}

type testMetadata struct {
	Name      string         `json:"name"`
	Namespace string         `json:"namespace"`
	Kwargs    map[string]any `json:"kwargs"`
}

// Path returns the manifest path of a project directory.
func Path(projectDir, targetDir string) string {
	if targetDir == "" {
		targetDir = "target"
	}
	if filepath.IsAbs(targetDir) {
		return filepath.Join(targetDir, FileName)
	}
	return filepath.Join(projectDir, targetDir, FileName)
}

// LoadProject reads the manifest of the dbt project in dir.
func LoadProject(dir, targetDir string) (*Project, error) {
	path := Path(dir, targetDir)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s\nHint: run `dbt parse` or `dbt compile` in %s first", ErrNotFound, path, dir)
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	p, err := Parse(f, filepath.Base(filepath.Clean(dir)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Dir = dir
	p.ManifestPath = path
	return p, nil
}

// Parse decodes a manifest. fallbackID names the project when the manifest
// metadata does not.
func Parse(r io.Reader, fallbackID string) (*Project, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	id := doc.Metadata.ProjectName
	if id == "" {
		id = fallbackID
	}

	p := &Project{ID: id, DbtVersion: doc.Metadata.DbtVersion}

	byID := make(map[string]*core.Model)
	for key, n := range doc.Nodes {
		if n.ResourceType != "model" {
			continue
		}
		uid := n.UniqueID
		if uid == "" {
			uid = key
		}
		m := &core.Model{
			Name:        n.Name,
			ProjectID:   id,
			UniqueID:    uid,
			Package:     n.PackageName,
			Path:        firstNonEmpty(n.OriginalFilePath, n.Path),
			Description: n.Description,
			Tags:        modelTags(n),
			Meta:        modelMeta(n),
		}
		byID[uid] = m
		p.Models = append(p.Models, m)
	}

	sort.Slice(p.Models, func(i, j int) bool {
		return p.Models[i].UniqueID < p.Models[j].UniqueID
	})

	attachTests(doc.Nodes, byID)
	return p, nil
}

// modelTags prefers config tags, which dbt fills from both the model file
// and dbt_project.yml, over node tags.
func modelTags(n node) []string {
	if len(n.Config.Tags) > 0 {
		return dedupe(n.Config.Tags)
	}
	return dedupe(n.Tags)
}

// modelMeta merges config meta over node meta.
func modelMeta(n node) map[string]any {
	meta := make(map[string]any, len(n.Meta)+len(n.Config.Meta))
	for k, v := range n.Meta {
		meta[k] = v
	}
	for k, v := range n.Config.Meta {
		meta[k] = v
	}
	return meta
}

// attachTests adds every test node to the models it is attached to, in
// test unique id order.
func attachTests(nodes map[string]node, models map[string]*core.Model) {
	keys := make([]string, 0, len(nodes))
	for k, n := range nodes {
		if n.ResourceType == "test" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		n := nodes[k]
		desc := testDescriptor(k, n)

		targets := n.DependsOn.Nodes
		if n.AttachedNode != "" {
			targets = []string{n.AttachedNode}
		}
		for _, target := range targets {
			if m, ok := models[target]; ok {
				m.Tests = append(m.Tests, desc)
			}
		}
	}
}

func testDescriptor(key string, n node) core.TestDescriptor {
	uid := n.UniqueID
	if uid == "" {
		uid = key
	}
	desc := core.TestDescriptor{UniqueID: uid, Column: n.ColumnName}

	if n.TestMetadata == nil {
		// Singular tests are identified by their name.
		desc.Type = n.Name
		return desc
	}

	desc.Type = n.TestMetadata.Name
	desc.Namespace = n.TestMetadata.Namespace
	if desc.Column == "" {
		if col, ok := n.TestMetadata.Kwargs["column_name"].(string); ok {
			desc.Column = col
		}
	}
	return desc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
