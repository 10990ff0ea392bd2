package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

const sampleVersionYAML = `
id: v1
workflow_id: wf1
trigger_type: api
status: published
blocks:
  - id: b1
    type: object
    order: 0
  - id: b2
    type: string
    order: 1
`

func writeWorkflowVersion(t *testing.T, root, workflowID, versionID string) {
	t.Helper()
	dir := filepath.Join(root, workflowID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, versionID+".yaml")
	if err := os.WriteFile(path, []byte(sampleVersionYAML), 0o644); err != nil {
		t.Fatalf("write version file: %v", err)
	}
}

func TestDir_ResolveVersion(t *testing.T) {
	root := t.TempDir()
	writeWorkflowVersion(t, root, "wf1", "v1")
	d := NewDir(root)

	blocks, err := d.ResolveVersion(context.Background(), "wf1", "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].ID != "b1" || blocks[1].ID != "b2" {
		t.Errorf("expected blocks sorted by order b1,b2, got %s,%s", blocks[0].ID, blocks[1].ID)
	}
}

func TestDir_ResolveVersion_NotFound(t *testing.T) {
	d := NewDir(t.TempDir())
	_, err := d.ResolveVersion(context.Background(), "missing", "v1")
	if !errors.Is(err, engine.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestDir_ResolvePublishedVersion(t *testing.T) {
	root := t.TempDir()
	writeWorkflowVersion(t, root, "wf1", "v2")
	manifest := `
[published]
wf1 = "v2"
`
	if err := os.WriteFile(filepath.Join(root, "manifest.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	d := NewDir(root)
	versionID, blocks, err := d.ResolvePublishedVersion(context.Background(), "wf1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if versionID != "v2" {
		t.Errorf("expected version v2, got %q", versionID)
	}
	if len(blocks) != 2 {
		t.Errorf("expected 2 blocks, got %d", len(blocks))
	}
}

func TestDir_ResolvePublishedVersion_NoneSet(t *testing.T) {
	d := NewDir(t.TempDir())
	_, _, err := d.ResolvePublishedVersion(context.Background(), "wf1")
	if !errors.Is(err, engine.ErrNoPublishedVersion) {
		t.Fatalf("expected ErrNoPublishedVersion, got %v", err)
	}
}

func TestDir_ResolveSlug(t *testing.T) {
	root := t.TempDir()
	manifest := `
[slugs.intake-form]
workflow_id = "wf1"
version_id = "v2"
public = true
`
	if err := os.WriteFile(filepath.Join(root, "manifest.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	d := NewDir(root)
	workflowID, versionID, public, err := d.ResolveSlug(context.Background(), "intake-form")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if workflowID != "wf1" || versionID != "v2" || !public {
		t.Errorf("unexpected slug resolution: %q %q %v", workflowID, versionID, public)
	}
}

func TestDir_ResolveSlug_Unknown(t *testing.T) {
	d := NewDir(t.TempDir())
	_, _, _, err := d.ResolveSlug(context.Background(), "nope")
	if !errors.Is(err, engine.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestDir_NoManifestIsEmptyNotError(t *testing.T) {
	d := NewDir(t.TempDir())
	m, err := d.manifest()
	if err != nil {
		t.Fatalf("expected missing manifest to be treated as empty, got %v", err)
	}
	if len(m.Published) != 0 || len(m.Slugs) != 0 {
		t.Errorf("expected empty manifest, got %+v", m)
	}
}
