package adapter

import (
	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/handlers"
)

// Mobile runs on-device: it has camera/GPS via the native bridge but no
// Docker daemon and no general filesystem/FTP access (sandboxed app storage
// only, out of scope for the generic filesystem block).
type Mobile struct {
	Breakers *handlers.FetchBreakers
	Models   *handlers.AgentModels
	Bridge   handlers.DeviceBridge
}

func NewMobile(breakers *handlers.FetchBreakers, models *handlers.AgentModels, bridge handlers.DeviceBridge) *Mobile {
	return &Mobile{Breakers: breakers, Models: models, Bridge: bridge}
}

func (m *Mobile) Platform() string { return "mobile" }

func (m *Mobile) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		HasFilesystem: false,
		HasFTP:        false,
		HasUI:         true,
		HasCamera:     true,
		HasVideo:      true,
		HasLocation:   true,
	}
}

func (m *Mobile) RegisterBlocks(r *engine.Registry) {
	r.Register(engine.BlockObject, engine.HandlerFunc(handlers.ObjectHandler))
	r.Register(engine.BlockString, engine.HandlerFunc(handlers.StringHandler))
	r.Register(engine.BlockArray, engine.HandlerFunc(handlers.ArrayHandler))
	r.Register(engine.BlockMath, engine.HandlerFunc(handlers.MathHandler))
	r.Register(engine.BlockDate, engine.HandlerFunc(handlers.DateHandler))
	r.Register(engine.BlockNormalize, engine.HandlerFunc(handlers.NormalizeHandler))
	r.Register(engine.BlockFetch, handlers.NewFetchHandler(m.Breakers))
	r.Register(engine.BlockAgent, handlers.NewAgentHandler(m.Models))
	r.Register(engine.BlockGoto, engine.HandlerFunc(handlers.GotoHandler))
	r.Register(engine.BlockSleep, engine.HandlerFunc(handlers.SleepHandler))
	r.Register(engine.BlockValidation, engine.HandlerFunc(handlers.ValidationHandler))
	r.Register(engine.BlockLocation, handlers.NewLocationHandler(m.Bridge))
	r.Register(engine.BlockImage, handlers.NewImageHandler(m.Bridge))
	r.Register(engine.BlockVideo, handlers.NewVideoHandler(m.Bridge))

	r.Register(engine.BlockCode, engine.UnsupportedStub(m.Platform(), engine.BlockCode))
	r.Register(engine.BlockFilesystem, engine.UnsupportedStub(m.Platform(), engine.BlockFilesystem))
	r.Register(engine.BlockFTP, engine.UnsupportedStub(m.Platform(), engine.BlockFTP))

	for _, t := range []engine.BlockType{engine.BlockUICamera, engine.BlockUIForm, engine.BlockUITable, engine.BlockUIDetails} {
		r.Register(t, engine.PassthroughHandler())
	}
}
