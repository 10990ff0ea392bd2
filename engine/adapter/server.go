package adapter

import (
	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/handlers"
)

// Server is the full-capability adapter: the cloud API process that owns a
// real filesystem, outbound network, and a Docker daemon for code blocks.
// It has no camera/GPS of its own, so location/image/video are gated on an
// optional DeviceBridge (typically nil, making those CAPABILITY_UNAVAILABLE).
type Server struct {
	Breakers *handlers.FetchBreakers
	Models   *handlers.AgentModels
	Bridge   handlers.DeviceBridge
	Sandbox  handlers.CodeSandbox
}

func NewServer(breakers *handlers.FetchBreakers, models *handlers.AgentModels, bridge handlers.DeviceBridge, sandbox handlers.CodeSandbox) *Server {
	return &Server{Breakers: breakers, Models: models, Bridge: bridge, Sandbox: sandbox}
}

func (s *Server) Platform() string { return "server" }

func (s *Server) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		HasFilesystem: true,
		HasFTP:        true,
		HasUI:         true,
		HasCamera:     s.Bridge != nil,
		HasVideo:      s.Bridge != nil,
		HasLocation:   s.Bridge != nil,
	}
}

func (s *Server) RegisterBlocks(r *engine.Registry) {
	r.Register(engine.BlockObject, engine.HandlerFunc(handlers.ObjectHandler))
	r.Register(engine.BlockString, engine.HandlerFunc(handlers.StringHandler))
	r.Register(engine.BlockArray, engine.HandlerFunc(handlers.ArrayHandler))
	r.Register(engine.BlockMath, engine.HandlerFunc(handlers.MathHandler))
	r.Register(engine.BlockDate, engine.HandlerFunc(handlers.DateHandler))
	r.Register(engine.BlockNormalize, engine.HandlerFunc(handlers.NormalizeHandler))
	r.Register(engine.BlockFetch, handlers.NewFetchHandler(s.Breakers))
	r.Register(engine.BlockAgent, handlers.NewAgentHandler(s.Models))
	r.Register(engine.BlockGoto, engine.HandlerFunc(handlers.GotoHandler))
	r.Register(engine.BlockSleep, engine.HandlerFunc(handlers.SleepHandler))
	r.Register(engine.BlockCode, handlers.NewCodeHandler(s.Sandbox))
	r.Register(engine.BlockFilesystem, engine.HandlerFunc(handlers.FilesystemHandler))
	r.Register(engine.BlockFTP, engine.HandlerFunc(handlers.FTPHandler))
	r.Register(engine.BlockValidation, engine.HandlerFunc(handlers.ValidationHandler))
	r.Register(engine.BlockLocation, handlers.NewLocationHandler(s.Bridge))
	r.Register(engine.BlockImage, handlers.NewImageHandler(s.Bridge))
	r.Register(engine.BlockVideo, handlers.NewVideoHandler(s.Bridge))

	for _, t := range []engine.BlockType{engine.BlockUICamera, engine.BlockUIForm, engine.BlockUITable, engine.BlockUIDetails} {
		r.Register(t, engine.PassthroughHandler())
	}
}
