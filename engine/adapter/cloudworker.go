package adapter

import (
	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/handlers"
)

// CloudWorker runs scheduled/hook-triggered workflows in a sandboxed worker
// pool: outbound network and a scratch filesystem, but no camera/GPS, no
// FTP, and no interactive UI (there is no client waiting on a pause).
type CloudWorker struct {
	Breakers *handlers.FetchBreakers
	Models   *handlers.AgentModels
	Sandbox  handlers.CodeSandbox
}

func NewCloudWorker(breakers *handlers.FetchBreakers, models *handlers.AgentModels, sandbox handlers.CodeSandbox) *CloudWorker {
	return &CloudWorker{Breakers: breakers, Models: models, Sandbox: sandbox}
}

func (c *CloudWorker) Platform() string { return "cloud_worker" }

func (c *CloudWorker) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		HasFilesystem: true,
		HasFTP:        false,
		HasUI:         false,
		HasCamera:     false,
		HasVideo:      false,
		HasLocation:   false,
	}
}

func (c *CloudWorker) RegisterBlocks(r *engine.Registry) {
	r.Register(engine.BlockObject, engine.HandlerFunc(handlers.ObjectHandler))
	r.Register(engine.BlockString, engine.HandlerFunc(handlers.StringHandler))
	r.Register(engine.BlockArray, engine.HandlerFunc(handlers.ArrayHandler))
	r.Register(engine.BlockMath, engine.HandlerFunc(handlers.MathHandler))
	r.Register(engine.BlockDate, engine.HandlerFunc(handlers.DateHandler))
	r.Register(engine.BlockNormalize, engine.HandlerFunc(handlers.NormalizeHandler))
	r.Register(engine.BlockFetch, handlers.NewFetchHandler(c.Breakers))
	r.Register(engine.BlockAgent, handlers.NewAgentHandler(c.Models))
	r.Register(engine.BlockGoto, engine.HandlerFunc(handlers.GotoHandler))
	r.Register(engine.BlockSleep, engine.HandlerFunc(handlers.SleepHandler))
	r.Register(engine.BlockCode, handlers.NewCodeHandler(c.Sandbox))
	r.Register(engine.BlockFilesystem, engine.HandlerFunc(handlers.FilesystemHandler))
	r.Register(engine.BlockValidation, engine.HandlerFunc(handlers.ValidationHandler))

	r.Register(engine.BlockFTP, engine.UnsupportedStub(c.Platform(), engine.BlockFTP))
	r.Register(engine.BlockLocation, engine.UnsupportedStub(c.Platform(), engine.BlockLocation))
	r.Register(engine.BlockImage, engine.UnsupportedStub(c.Platform(), engine.BlockImage))
	r.Register(engine.BlockVideo, engine.UnsupportedStub(c.Platform(), engine.BlockVideo))

	for _, t := range []engine.BlockType{engine.BlockUICamera, engine.BlockUIForm, engine.BlockUITable, engine.BlockUIDetails} {
		r.Register(t, engine.UnsupportedStub(c.Platform(), t))
	}
}
