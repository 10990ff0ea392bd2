package engine

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// TriggerType is the closed set of ways a WorkflowVersion may be started.
type TriggerType string

const (
	TriggerInteractive TriggerType = "interactive"
	TriggerAPI         TriggerType = "api"
	TriggerSchedule    TriggerType = "schedule"
	TriggerHook        TriggerType = "hook"
	TriggerVision      TriggerType = "vision"
)

// ExecutionEnvironment is one of the deployment targets a WorkflowVersion
// declares itself compatible with.
type ExecutionEnvironment string

const (
	EnvCloud   ExecutionEnvironment = "cloud"
	EnvDesktop ExecutionEnvironment = "desktop"
	EnvMobile  ExecutionEnvironment = "mobile"
	EnvKiosk   ExecutionEnvironment = "kiosk"
)

// VersionStatus is draft until published; only a published version may be
// triggered.
type VersionStatus string

const (
	VersionDraft     VersionStatus = "draft"
	VersionPublished VersionStatus = "published"
)

// WorkflowVersion is an ordered sequence of blocks plus trigger metadata.
// This is a workflow *definition*, not a DSL: loading it never compiles or
// interprets anything beyond decoding YAML into this struct and validating
// referential integrity (unique block IDs, resolvable on_error/goto
// targets where static).
type WorkflowVersion struct {
	ID                    string                 `yaml:"id"`
	WorkflowID            string                 `yaml:"workflow_id"`
	TriggerType           TriggerType            `yaml:"trigger_type"`
	TriggerConfig         map[string]any         `yaml:"trigger_config"`
	ExecutionEnvironments []ExecutionEnvironment `yaml:"execution_environments"`
	Status                VersionStatus          `yaml:"status"`
	Blocks                []yamlBlock            `yaml:"blocks"`
}

// yamlBlock is the wire shape of a Block in a workflow definition file; it
// decodes into the engine's Block type via ToBlocks.
type yamlBlock struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	Type          string         `yaml:"type"`
	Logic         map[string]any `yaml:"logic"`
	Order         int            `yaml:"order"`
	Conditions    string         `yaml:"conditions"`
	OnError       string         `yaml:"on_error"`
	OnErrorTarget string         `yaml:"on_error_target"`
	RetryMax      int            `yaml:"retry_max_attempts"`
	RetryInitial  int            `yaml:"retry_initial_ms"`
	RetryMaxDelay int            `yaml:"retry_max_delay_ms"`
}

// LoadWorkflowVersion decodes a single workflow definition document.
func LoadWorkflowVersion(data []byte) (*WorkflowVersion, error) {
	var wv WorkflowVersion
	if err := yaml.Unmarshal(data, &wv); err != nil {
		return nil, fmt.Errorf("decode workflow version: %w", err)
	}
	if err := wv.Validate(); err != nil {
		return nil, err
	}
	return &wv, nil
}

// Validate checks referential integrity the loader can verify statically:
// unique non-empty block IDs and on_error:goto targets that resolve.
func (wv *WorkflowVersion) Validate() error {
	seen := make(map[string]bool, len(wv.Blocks))
	for _, b := range wv.Blocks {
		if b.ID == "" {
			return NewBlockError(ErrCodeValidation, "block missing id", nil)
		}
		if seen[b.ID] {
			return NewBlockError(ErrCodeValidation, "duplicate block id: "+b.ID, nil)
		}
		seen[b.ID] = true
	}
	for _, b := range wv.Blocks {
		if b.OnError == string(OnErrorGoto) && (b.OnErrorTarget == "" || !seen[b.OnErrorTarget]) {
			return NewBlockError(ErrCodeValidation, "block "+b.ID+" on_error goto target not found", nil)
		}
	}
	return nil
}

// ToBlocks converts the decoded YAML shape into the engine's runtime Block
// type, sorted ascending by Order the way the interpreter expects.
func (wv *WorkflowVersion) ToBlocks() ([]Block, error) {
	blocks := make([]Block, 0, len(wv.Blocks))
	for _, b := range wv.Blocks {
		var cond *Conditions
		if b.Conditions != "" {
			cond = &Conditions{Expr: b.Conditions}
		}
		var retry *RetryPolicy
		if b.RetryMax > 0 {
			retry = &RetryPolicy{MaxAttempts: b.RetryMax, InitialMs: b.RetryInitial, MaxDelayMs: b.RetryMaxDelay}
		}
		onErr := ErrorAction(b.OnError)
		if onErr == "" {
			onErr = OnErrorFailRun
		}
		blocks = append(blocks, Block{
			ID:            b.ID,
			Name:          b.Name,
			Type:          BlockType(b.Type),
			Logic:         b.Logic,
			Order:         b.Order,
			Conditions:    cond,
			OnError:       onErr,
			OnErrorTarget: b.OnErrorTarget,
			Retry:         retry,
		})
	}
	sortBlocksByOrder(blocks)
	return blocks, nil
}

func sortBlocksByOrder(blocks []Block) {
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Order < blocks[j].Order })
}
