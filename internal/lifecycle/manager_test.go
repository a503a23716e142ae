package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BHPAV/dev-container-launcher/internal/audit"
	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/engine"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/runtime"
	"github.com/BHPAV/dev-container-launcher/internal/sshconfig"
	"github.com/BHPAV/dev-container-launcher/internal/system"
	"github.com/BHPAV/dev-container-launcher/internal/validate"
)

type listPorts struct {
	ports []int
}

func (l *listPorts) Allocate(exclude map[int]bool) (int, error) {
	for len(l.ports) > 0 {
		p := l.ports[0]
		l.ports = l.ports[1:]
		if !exclude[p] {
			return p, nil
		}
	}
	return 0, fmt.Errorf("no ports left")
}

type failingSync struct {
	removed []string
}

func (f *failingSync) UpsertEntry(ctx context.Context, e sshconfig.Entry) (sshconfig.UpsertResult, error) {
	return sshconfig.UpsertResult{}, errors.ConfigIO("disk full", nil)
}

func (f *failingSync) RemoveEntry(alias string) bool {
	f.removed = append(f.removed, alias)
	return false
}

type fixture struct {
	mgr       *Manager
	rt        *runtime.MockRuntime
	exec      *system.MockExecutor
	audit     *audit.Logger
	sshPath   string
	workspace string
	waits     []int
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	home, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(home, "Dev")
	ws := filepath.Join(root, "demo")
	if err := os.MkdirAll(ws, 0o755); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		rt:        runtime.NewMockRuntime(),
		exec:      system.NewMockExecutor(),
		audit:     audit.NewLogger(filepath.Join(home, ".devcontainer")),
		sshPath:   filepath.Join(home, ".ssh", "config"),
		workspace: ws,
	}
	f.rt.AddImage("base:latest")

	v := validate.New(0, []string{root})
	eng := engine.New(f.rt, v, &listPorts{ports: []int{40001, 40002, 40003, 40004}}, engine.Options{})
	sync := sshconfig.New(f.sshPath, sshconfig.WithValidator(v))

	opts := Options{
		SSHUser:     "dev",
		PortRetries: 3,
		Audit:       f.audit,
		Executor:    f.exec,
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.mgr = New(eng, sync, opts)
	return f
}

func (f *fixture) sshConfig(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.sshPath)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return string(data)
}

func (f *fixture) req(alias string) CreateRequest {
	return CreateRequest{Alias: alias, Image: "base:latest", Workspace: f.workspace}
}

func aliases(sandboxes []engine.Sandbox) []string {
	var out []string
	for _, sb := range sandboxes {
		out = append(out, sb.Alias)
	}
	return out
}

func TestCreateListRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.mgr.CreateSandbox(ctx, f.req("demo"))
	if err != nil {
		t.Fatalf("CreateSandbox() error = %v", err)
	}
	if res.Port != 40001 || res.Attempts != 1 || res.SSHError != nil {
		t.Errorf("result = %+v", res)
	}

	sandboxes, err := f.mgr.ListSandboxes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sandboxes) != 1 || sandboxes[0].Alias != "demo" || sandboxes[0].Status != engine.StatusRunning {
		t.Fatalf("ListSandboxes() = %+v", sandboxes)
	}
	if !strings.Contains(f.sshConfig(t), "Host demo\n  HostName 127.0.0.1\n  Port 40001\n  User dev\n") {
		t.Errorf("ssh config missing entry:\n%s", f.sshConfig(t))
	}

	rm, err := f.mgr.RemoveSandbox(ctx, "demo", true)
	if err != nil {
		t.Fatalf("RemoveSandbox() error = %v", err)
	}
	if !rm.SSHEntryRemoved {
		t.Error("SSHEntryRemoved = false")
	}

	sandboxes, err = f.mgr.ListSandboxes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sandboxes) != 0 {
		t.Errorf("ListSandboxes() after remove = %v", aliases(sandboxes))
	}
	if strings.Contains(f.sshConfig(t), "Host demo") {
		t.Errorf("ssh config still has demo:\n%s", f.sshConfig(t))
	}

	events, err := f.audit.Events("demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Type != audit.EventCreate || events[1].Type != audit.EventRemove {
		t.Errorf("audit events = %+v", events)
	}
	if events[0].Fields["port"] != "40001" {
		t.Errorf("create event fields = %v", events[0].Fields)
	}
}

func TestCreateSandbox_ImageNotFoundWritesNoEntry(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.CreateSandbox(context.Background(), CreateRequest{Alias: "demo", Image: "ghost:1", Workspace: f.workspace})
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("CreateSandbox() error = %v, want not found", err)
	}
	if !strings.Contains(err.Error(), "devctl build") {
		t.Errorf("error lacks build guidance: %v", err)
	}
	if _, statErr := os.Stat(f.sshPath); !os.IsNotExist(statErr) {
		t.Errorf("ssh config written for a failed create:\n%s", f.sshConfig(t))
	}
}

func TestCreateSandbox_DefaultImage(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.DefaultImage = "base:latest" })

	res, err := f.mgr.CreateSandbox(context.Background(), CreateRequest{Alias: "demo", Workspace: f.workspace})
	if err != nil {
		t.Fatalf("CreateSandbox() error = %v", err)
	}
	if res.Sandbox.Image != "base:latest" {
		t.Errorf("Image = %q, want base:latest", res.Sandbox.Image)
	}
}

func TestNew_DefaultImageFallback(t *testing.T) {
	m := New(nil, nil, Options{})
	if m.opts.DefaultImage != config.DefaultImage {
		t.Errorf("DefaultImage = %q, want %q", m.opts.DefaultImage, config.DefaultImage)
	}
}

func TestCreateSandbox_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.mgr.CreateSandbox(ctx, f.req("demo"))
	if err != nil {
		t.Fatal(err)
	}
	before := f.sshConfig(t)

	_, err = f.mgr.CreateSandbox(ctx, f.req("demo"))
	if !errors.IsKind(err, errors.KindConflict) {
		t.Fatalf("second CreateSandbox() error = %v, want conflict", err)
	}

	info, err := f.mgr.GetSandboxInfo(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != first.Sandbox.ID || info.Status != engine.StatusRunning || info.HostPort != first.Port {
		t.Errorf("first sandbox changed: %+v", info)
	}
	if f.sshConfig(t) != before {
		t.Error("ssh config changed by a conflicting create")
	}
}

func TestCreateSandbox_Validation(t *testing.T) {
	f := newFixture(t)

	for _, alias := range []string{"", "-x", "a b", "a;rm -rf /", "a$(id)"} {
		_, err := f.mgr.CreateSandbox(context.Background(), f.req(alias))
		if !errors.IsKind(err, errors.KindValidation) {
			t.Errorf("CreateSandbox(%q) error = %v, want validation", alias, err)
		}
	}
	if len(f.rt.GetCalls()) != 0 {
		t.Errorf("invalid input reached the engine: %v", f.rt.GetCalls())
	}
}

func TestCreateSandbox_RetriesPortConflict(t *testing.T) {
	f := newFixture(t)
	f.rt.SetBusyPort(40001, true)

	res, err := f.mgr.CreateSandbox(context.Background(), f.req("demo"))
	if err != nil {
		t.Fatalf("CreateSandbox() error = %v", err)
	}
	if res.Port != 40002 || res.Attempts != 2 {
		t.Errorf("Port = %d, Attempts = %d; want 40002, 2", res.Port, res.Attempts)
	}
	if !strings.Contains(f.sshConfig(t), "  Port 40002\n") {
		t.Errorf("ssh config has wrong port:\n%s", f.sshConfig(t))
	}
}

func TestCreateSandbox_RetriesExhausted(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.PortRetries = 1 })
	f.rt.SetBusyPort(40001, true)
	f.rt.SetBusyPort(40002, true)

	_, err := f.mgr.CreateSandbox(context.Background(), f.req("demo"))
	if !errors.IsKind(err, errors.KindEngine) || !errors.IsRetryable(err) {
		t.Fatalf("CreateSandbox() error = %v, want retryable engine error", err)
	}
	if n := len(f.rt.GetCallsFor("Create")); n != 2 {
		t.Errorf("engine Create called %d times, want 2", n)
	}
	if f.sshConfig(t) != "" {
		t.Error("ssh config written for a failed create")
	}
	if len(f.rt.Containers) != 0 {
		t.Errorf("leftover containers: %v", f.rt.Containers)
	}

	events, _ := f.audit.Events("demo")
	if len(events) != 1 || events[0].Type != audit.EventError {
		t.Errorf("audit events = %+v", events)
	}
}

func TestCreateSandbox_SSHFailureKeepsSandbox(t *testing.T) {
	f := newFixture(t)
	sync := &failingSync{}
	f.mgr.sync = sync

	res, err := f.mgr.CreateSandbox(context.Background(), f.req("demo"))
	if err != nil {
		t.Fatalf("CreateSandbox() error = %v", err)
	}
	if !errors.IsKind(res.SSHError, errors.KindConfigIO) {
		t.Errorf("SSHError = %v, want config io", res.SSHError)
	}
	if _, err := f.mgr.GetSandboxInfo(context.Background(), "demo"); err != nil {
		t.Errorf("sandbox should exist: %v", err)
	}
}

func TestCreateSandbox_ExistingEntryLeftAlone(t *testing.T) {
	f := newFixture(t)
	stale := "Host demo\n  HostName 127.0.0.1\n  Port 39999\n"
	if err := os.MkdirAll(filepath.Dir(f.sshPath), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.sshPath, []byte(stale), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := f.mgr.CreateSandbox(context.Background(), f.req("demo"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.SSHEntryExisted {
		t.Error("SSHEntryExisted = false")
	}
	if f.sshConfig(t) != stale {
		t.Errorf("existing entry was rewritten:\n%s", f.sshConfig(t))
	}
}

func TestCreateSandbox_WaitsForSSH(t *testing.T) {
	var probed []string
	probe := func(ctx context.Context, host string, port int, timeout time.Duration) error {
		probed = append(probed, fmt.Sprintf("%s:%d/%s", host, port, timeout))
		if port == 40002 {
			return fmt.Errorf("connection refused")
		}
		return nil
	}
	f := newFixture(t, func(o *Options) {
		o.ReadyWait = 3 * time.Second
		o.WaitForPort = probe
	})

	res, err := f.mgr.CreateSandbox(context.Background(), f.req("demo"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ready {
		t.Error("Ready = false")
	}

	res, err = f.mgr.CreateSandbox(context.Background(), f.req("other"))
	if err != nil {
		t.Fatalf("unreachable port should only warn, got %v", err)
	}
	if res.Ready {
		t.Error("Ready = true for an unreachable port")
	}

	want := []string{"127.0.0.1:40001/3s", "127.0.0.1:40002/3s"}
	if strings.Join(probed, ",") != strings.Join(want, ",") {
		t.Errorf("probes = %v, want %v", probed, want)
	}
}

func TestStopStartSandbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.CreateSandbox(ctx, f.req("demo")); err != nil {
		t.Fatal(err)
	}
	before := f.sshConfig(t)

	changed, err := f.mgr.StopSandbox(ctx, "demo")
	if err != nil || !changed {
		t.Fatalf("StopSandbox() = %v, %v", changed, err)
	}
	changed, err = f.mgr.StopSandbox(ctx, "demo")
	if err != nil {
		t.Fatalf("second StopSandbox() error = %v", err)
	}
	if changed {
		t.Error("second StopSandbox() changed state")
	}

	info, _ := f.mgr.GetSandboxInfo(ctx, "demo")
	if info.Status != engine.StatusExited {
		t.Errorf("Status = %q, want exited", info.Status)
	}

	if changed, err := f.mgr.StartSandbox(ctx, "demo"); err != nil || !changed {
		t.Errorf("StartSandbox() = %v, %v", changed, err)
	}
	if f.sshConfig(t) != before {
		t.Error("stop/start must not touch the ssh config")
	}

	events, _ := f.audit.Events("demo")
	var types []string
	for _, e := range events {
		types = append(types, string(e.Type))
	}
	if got := strings.Join(types, ","); got != "create,stop,start" {
		t.Errorf("audit types = %s", got)
	}
}

func TestStopSandbox_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.mgr.StopSandbox(context.Background(), "ghost"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("StopSandbox() error = %v, want not found", err)
	}
}

func TestRemoveSandbox_EngineFailureKeepsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.CreateSandbox(ctx, f.req("demo")); err != nil {
		t.Fatal(err)
	}

	_, err := f.mgr.RemoveSandbox(ctx, "demo", false)
	if !errors.IsKind(err, errors.KindEngine) {
		t.Fatalf("RemoveSandbox(running, no force) error = %v, want engine", err)
	}
	if !strings.Contains(f.sshConfig(t), "Host demo") {
		t.Error("ssh entry removed although the sandbox still exists")
	}
}

func TestRemoveSandbox_SyncFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.CreateSandbox(ctx, f.req("demo")); err != nil {
		t.Fatal(err)
	}
	sync := &failingSync{}
	f.mgr.sync = sync

	res, err := f.mgr.RemoveSandbox(ctx, "demo", true)
	if err != nil {
		t.Fatalf("RemoveSandbox() error = %v", err)
	}
	if res.SSHEntryRemoved {
		t.Error("SSHEntryRemoved = true")
	}
	if len(sync.removed) != 1 {
		t.Errorf("RemoveEntry calls = %v", sync.removed)
	}
}

func TestRemoveSandbox_NotFound(t *testing.T) {
	f := newFixture(t)
	sync := &failingSync{}
	f.mgr.sync = sync

	if _, err := f.mgr.RemoveSandbox(context.Background(), "ghost", true); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("RemoveSandbox() error = %v, want not found", err)
	}
	if len(sync.removed) != 0 {
		t.Error("RemoveEntry must not run when the engine removal failed")
	}
}

func TestBuildImage(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer

	err := f.mgr.BuildImage(context.Background(), BuildRequest{Tag: "devbox:latest", ContextDir: f.workspace, Output: &out})
	if err != nil {
		t.Fatalf("BuildImage() error = %v", err)
	}
	if !strings.Contains(out.String(), "devbox:latest") {
		t.Errorf("build output = %q", out.String())
	}

	call := f.rt.GetCallsFor("Build")[0]
	if call.Args[1] != "Dockerfile" || call.Args[2] != f.workspace {
		t.Errorf("build call = %v", call.Args)
	}

	events, _ := f.audit.Events("")
	if len(events) != 1 || events[0].Type != audit.EventBuild {
		t.Errorf("audit events = %+v", events)
	}
}

func TestBuildImage_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []BuildRequest{
		{Tag: "", ContextDir: f.workspace},
		{Tag: "x", ContextDir: f.workspace, Dockerfile: "../Dockerfile"},
		{Tag: "x", ContextDir: f.workspace, Dockerfile: "/etc/passwd"},
	}
	for _, req := range tests {
		if err := f.mgr.BuildImage(context.Background(), req); !errors.IsKind(err, errors.KindValidation) {
			t.Errorf("BuildImage(%+v) error = %v, want validation", req, err)
		}
	}
}

func TestBuildImage_EngineError(t *testing.T) {
	f := newFixture(t)
	f.rt.SetError("Build", fmt.Errorf("COPY failed"))

	err := f.mgr.BuildImage(context.Background(), BuildRequest{Tag: "x", ContextDir: f.workspace})
	if !errors.IsKind(err, errors.KindEngine) {
		t.Errorf("BuildImage() error = %v, want engine", err)
	}
}

func TestOpenEditor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.CreateSandbox(ctx, f.req("demo")); err != nil {
		t.Fatal(err)
	}
	f.exec.Paths["cursor"] = "/usr/local/bin/cursor"

	if err := f.mgr.OpenEditor(ctx, "demo"); err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}

	cmd, ok := f.exec.LastCommand()
	if !ok || !cmd.Detached {
		t.Fatalf("editor not started detached: %+v", cmd)
	}
	want := "cursor --folder-uri vscode-remote://ssh-remote+demo/home/dev"
	if cmd.String() != want {
		t.Errorf("command = %q, want %q", cmd.String(), want)
	}
}

func TestOpenEditor_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.mgr.OpenEditor(ctx, "a;b"); !errors.IsKind(err, errors.KindValidation) {
		t.Errorf("invalid alias error = %v", err)
	}
	if err := f.mgr.OpenEditor(ctx, "ghost"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("missing sandbox error = %v", err)
	}

	if _, err := f.mgr.CreateSandbox(ctx, f.req("demo")); err != nil {
		t.Fatal(err)
	}
	err := f.mgr.OpenEditor(ctx, "demo")
	if !errors.IsKind(err, errors.KindNotFound) || err.Error() != "Cursor CLI not installed" {
		t.Errorf("missing editor error = %v", err)
	}
	if _, ok := f.exec.LastCommand(); ok {
		t.Error("nothing should be launched without the editor binary")
	}
}

func TestOpenEditor_LaunchFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.CreateSandbox(ctx, f.req("demo")); err != nil {
		t.Fatal(err)
	}
	f.exec.Paths["cursor"] = "/usr/local/bin/cursor"
	f.exec.AddResponse("cursor", nil, fmt.Errorf("permission denied"))

	err := f.mgr.OpenEditor(ctx, "demo")
	if !errors.IsKind(err, errors.KindEngine) {
		t.Fatalf("launch failure error = %v (kind %v), want engine", err, errors.KindOf(err))
	}
	if !strings.Contains(err.Error(), "failed to launch cursor") {
		t.Errorf("error = %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.HostKeyPolicy = config.PolicyStrict

	opts := OptionsFromConfig(cfg)
	if opts.HostKeyPolicy != config.PolicyStrict || opts.SSHUser != cfg.SSHUser || opts.PortRetries != cfg.PortRetries {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
	if opts.Audit == nil {
		t.Error("Audit logger not set")
	}
}
