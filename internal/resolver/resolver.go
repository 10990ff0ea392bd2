// Package resolver implements transport/http.WorkflowResolver against a
// directory of workflow version YAML files plus a small TOML manifest
// describing which version is published and which public slugs route
// where. It is the simplest thing that can stand in for a real workflow
// catalog service.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// Manifest is decoded from manifest.toml in the workflows directory.
type Manifest struct {
	Published map[string]string    `toml:"published"` // workflow_id -> version_id
	Slugs     map[string]SlugEntry `toml:"slugs"`      // slug -> target
}

type SlugEntry struct {
	WorkflowID string `toml:"workflow_id"`
	VersionID  string `toml:"version_id"`
	Public     bool   `toml:"public"`
}

// Dir resolves workflow versions from <dir>/<workflowID>/<versionID>.yaml,
// reloading manifest.toml on every call so publishing a new version or slug
// doesn't require a restart.
type Dir struct {
	root string
	mu   sync.Mutex
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) manifest() (Manifest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var m Manifest
	data, err := os.ReadFile(filepath.Join(d.root, "manifest.toml"))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if _, err := toml.Decode(string(data), &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func (d *Dir) ResolveVersion(_ context.Context, workflowID, versionID string) ([]engine.Block, error) {
	path := filepath.Join(d.root, workflowID, versionID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, engine.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("read workflow version: %w", err)
	}
	wv, err := engine.LoadWorkflowVersion(data)
	if err != nil {
		return nil, err
	}
	return wv.ToBlocks()
}

func (d *Dir) ResolvePublishedVersion(ctx context.Context, workflowID string) (string, []engine.Block, error) {
	m, err := d.manifest()
	if err != nil {
		return "", nil, err
	}
	versionID, ok := m.Published[workflowID]
	if !ok {
		return "", nil, engine.ErrNoPublishedVersion
	}
	blocks, err := d.ResolveVersion(ctx, workflowID, versionID)
	if err != nil {
		return "", nil, err
	}
	return versionID, blocks, nil
}

func (d *Dir) ResolveSlug(_ context.Context, slug string) (string, string, bool, error) {
	m, err := d.manifest()
	if err != nil {
		return "", "", false, err
	}
	entry, ok := m.Slugs[slug]
	if !ok {
		return "", "", false, engine.ErrWorkflowNotFound
	}
	return entry.WorkflowID, entry.VersionID, entry.Public, nil
}
