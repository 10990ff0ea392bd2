package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// CodeSandbox holds the fleet-wide defaults for the code block: the
// container image to run and the memory/timeout ceilings a block's own
// code_memory_mb/code_timeout logic fields override.
type CodeSandbox struct {
	Image             string
	DefaultMemMB      int
	DefaultTimeoutSec int
}

// NewCodeHandler binds CodeSandbox's defaults into a code block handler.
func NewCodeHandler(sandbox CodeSandbox) engine.Handler {
	if sandbox.Image == "" {
		sandbox.Image = "node:20-alpine"
	}
	if sandbox.DefaultMemMB == 0 {
		sandbox.DefaultMemMB = 128
	}
	if sandbox.DefaultTimeoutSec == 0 {
		sandbox.DefaultTimeoutSec = 5
	}
	return engine.HandlerFunc(func(ctx context.Context, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
		return codeHandle(ctx, block, wctx, sandbox)
	})
}

// codeHandle executes logic.code_source as Node.js inside a disposable,
// resource-capped container: no network unless code_allow_network is set,
// a memory ceiling, and a wall-clock timeout. The script receives
// {state, event, secrets} as JSON on stdin and must print its single JSON
// output value on stdout.
func codeHandle(ctx context.Context, block engine.Block, wctx *engine.WorkflowContext, sandbox CodeSandbox) (engine.BlockResult, error) {
	source := logicString(block, wctx, "code_source", "")
	if source == "" {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "code_source is required", nil)
	}
	memoryMB := logicInt(block, wctx, "code_memory_mb", sandbox.DefaultMemMB)
	timeoutSec := logicInt(block, wctx, "code_timeout", sandbox.DefaultTimeoutSec)
	allowNetwork := logicBool(block, wctx, "code_allow_network", false)

	input, err := json.Marshal(map[string]any{
		"state":   wctx.State,
		"event":   wctx.Event,
		"secrets": wctx.Secrets,
	})
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeInternal, "marshal sandbox input: "+err.Error(), err)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "docker client: "+err.Error(), err)
	}
	defer cli.Close()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	if _, _, err := cli.ImageInspectWithRaw(runCtx, sandbox.Image); err != nil {
		pullReader, err := cli.ImagePull(runCtx, sandbox.Image, image.PullOptions{})
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "image pull: "+err.Error(), err)
		}
		_, _ = io.Copy(io.Discard, pullReader)
		_ = pullReader.Close()
	}

	networkMode := container.NetworkMode("none")
	if allowNetwork {
		networkMode = "bridge"
	}

	script := fmt.Sprintf("const input=JSON.parse(require('fs').readFileSync(0,'utf8'));const fn=new Function('state','event','secrets',%q);const out=fn(input.state,input.event,input.secrets);process.stdout.write(JSON.stringify(out===undefined?null:out));", source)

	resp, err := cli.ContainerCreate(runCtx, &container.Config{
		Image:        sandbox.Image,
		Cmd:          []string{"node", "-e", script},
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}, &container.HostConfig{
		NetworkMode: networkMode,
		Resources: container.Resources{
			Memory: int64(memoryMB) * 1024 * 1024,
		},
		AutoRemove: true,
	}, nil, nil, "")
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "container create: "+err.Error(), err)
	}

	hijack, err := cli.ContainerAttach(runCtx, resp.ID, container.AttachOptions{
		Stream: true, Stdin: true, Stdout: true, Stderr: true,
	})
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "container attach: "+err.Error(), err)
	}
	defer hijack.Close()

	if err := cli.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "container start: "+err.Error(), err)
	}

	_, _ = hijack.Conn.Write(input)
	_ = hijack.CloseWrite()

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, hijack.Reader)
		copyDone <- err
	}()

	statusCh, errCh := cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "container wait: "+err.Error(), err)
		}
	case status := <-statusCh:
		<-copyDone
		if status.StatusCode != 0 {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "script exited "+fmt.Sprint(status.StatusCode)+": "+stderr.String(), nil)
		}
	case <-runCtx.Done():
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "sandbox exceeded wall-clock timeout", runCtx.Err())
	}

	var out any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSandbox, "sandbox output was not JSON: "+err.Error(), err)
	}

	return engine.BlockResult{StateDelta: bind(block, "code_result", out)}, nil
}
