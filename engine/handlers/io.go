package handlers

import (
	"encoding/base64"
	"fmt"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// DeviceBridge is the capability a server-side handler proxies location,
// image, and video blocks through when the run executes on a platform
// without direct hardware access (kiosk/mobile). With a nil bridge the
// location, image and video handlers fail CAPABILITY_UNAVAILABLE.
type DeviceBridge interface {
	GetLocation() (lat, lon float64, err error)
	CaptureImage() ([]byte, error)
	CaptureVideoClip(durationMs int) ([]byte, error)
}

// FilesystemHandler reads, writes, or lists files under fs_path. No
// ecosystem filesystem library exists in the retrieval pack for this; it is
// a justified stdlib use (see DESIGN.md).
func FilesystemHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	op := logicString(block, wctx, "fs_op", "read")
	path := logicString(block, wctx, "fs_path", "")
	if path == "" {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "fs_path is required", nil)
	}
	path = filepath.Clean(path)

	switch op {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "filesystem read: "+err.Error(), err)
		}
		return engine.BlockResult{StateDelta: bind(block, "fs_content", string(data))}, nil

	case "write":
		content := logicString(block, wctx, "fs_content", "")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "filesystem mkdir: "+err.Error(), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "filesystem write: "+err.Error(), err)
		}
		return engine.BlockResult{StateDelta: bind(block, "fs_bytes_written", len(content))}, nil

	case "list":
		entries, err := os.ReadDir(path)
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "filesystem list: "+err.Error(), err)
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return engine.BlockResult{StateDelta: bind(block, "fs_entries", names)}, nil

	default:
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "fs_op must be read, write, or list", nil)
	}
}

// FTPHandler uploads a file over plain FTP using net/textproto, the closest
// stdlib primitive to an FTP client: the retrieval pack carries no ecosystem
// FTP client (see DESIGN.md). Any ftp_op other than "upload", including the
// default "download", fails CAPABILITY_UNAVAILABLE.
func FTPHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	addr := logicString(block, wctx, "ftp_host", "")
	if addr == "" {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "ftp_host is required", nil)
	}
	user := logicString(block, wctx, "ftp_user", "anonymous")
	pass := logicString(block, wctx, "ftp_password", "")
	remotePath := logicString(block, wctx, "ftp_path", "")
	op := logicString(block, wctx, "ftp_op", "download")

	conn, err := textproto.Dial("tcp", addr)
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeUpstream, "ftp dial: "+err.Error(), err)
	}
	defer conn.Close()

	if _, _, err := conn.ReadResponse(220); err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeUpstream, "ftp greeting: "+err.Error(), err)
	}
	if err := sendFTPCmd(conn, "USER "+user, 331); err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeUpstream, err.Error(), err)
	}
	if err := sendFTPCmd(conn, "PASS "+pass, 230); err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeUpstream, "ftp login: "+err.Error(), err)
	}

	switch op {
	case "upload":
		content := logicString(block, wctx, "ftp_content", "")
		if err := sendFTPCmd(conn, "STOR "+remotePath, 150); err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeUpstream, err.Error(), err)
		}
		fmt.Fprint(conn.Writer, content)
		if _, _, err := conn.ReadResponse(226); err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeUpstream, "ftp store: "+err.Error(), err)
		}
		return engine.BlockResult{StateDelta: bind(block, "ftp_bytes_written", len(content))}, nil

	default:
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "ftp download requires a data-connection bridge not provided here", nil)
	}
}

func sendFTPCmd(conn *textproto.Conn, cmd string, expect int) error {
	if err := conn.Cmd(cmd); err != nil {
		return err
	}
	_, _, err := conn.ReadResponse(expect)
	return err
}

// NewLocationHandler proxies a location read through bridge. On nil bridge,
// CAPABILITY_UNAVAILABLE — a server process has no GPS.
func NewLocationHandler(bridge DeviceBridge) engine.Handler {
	return engine.HandlerFunc(func(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
		if bridge == nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "location: no device bridge configured", nil)
		}
		lat, lon, err := bridge.GetLocation()
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "location: "+err.Error(), err)
		}
		return engine.BlockResult{StateDelta: bind(block, "location", map[string]any{"lat": lat, "lon": lon})}, nil
	})
}

// NewImageHandler proxies a still capture through bridge, base64-encoding
// the result for safe state-delta storage.
func NewImageHandler(bridge DeviceBridge) engine.Handler {
	return engine.HandlerFunc(func(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
		if bridge == nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "image: no device bridge configured", nil)
		}
		data, err := bridge.CaptureImage()
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "image: "+err.Error(), err)
		}
		return engine.BlockResult{StateDelta: bind(block, "image_base64", base64.StdEncoding.EncodeToString(data))}, nil
	})
}

// NewVideoHandler proxies a short clip capture through bridge.
func NewVideoHandler(bridge DeviceBridge) engine.Handler {
	return engine.HandlerFunc(func(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
		if bridge == nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "video: no device bridge configured", nil)
		}
		durationMs := logicInt(block, wctx, "video_duration_ms", 3000)
		data, err := bridge.CaptureVideoClip(durationMs)
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCapabilityUnavail, "video: "+err.Error(), err)
		}
		return engine.BlockResult{StateDelta: bind(block, "video_base64", base64.StdEncoding.EncodeToString(data))}, nil
	})
}
