package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BHPAV/dev-container-launcher/internal/system"
)

const inspectRunning = `[{
  "Id": "abc123def456",
  "Name": "/dev_demo",
  "Created": "2025-03-01T10:00:00.123456789Z",
  "State": {"Status": "running"},
  "Config": {"Image": "base:latest", "Labels": {"devcontainer": "true"}},
  "NetworkSettings": {"Ports": {"22/tcp": [{"HostIp": "127.0.0.1", "HostPort": "2222"}]}},
  "Mounts": [{"Type": "bind", "Source": "/home/dev/Dev/demo", "Destination": "/workspace", "RW": true}]
}]`

const inspectExited = `[{
  "Id": "abc123def456",
  "Name": "/dev_demo",
  "State": {"Status": "exited"},
  "Config": {"Image": "base:latest", "Labels": {"devcontainer": "true"}},
  "HostConfig": {"PortBindings": {"22/tcp": [{"HostIp": "127.0.0.1", "HostPort": "40001"}]}},
  "NetworkSettings": {"Ports": {"22/tcp": null}}
}]`

func newCLI() (*DockerRuntime, *system.MockExecutor) {
	exec := system.NewMockExecutor()
	return NewDockerRuntime("docker", exec), exec
}

func exitErr(stderr string) error {
	return &system.ExitError{Name: "docker", ExitCode: 1, Stderr: stderr}
}

func TestDockerRuntime_Name(t *testing.T) {
	rt, _ := newCLI()
	if rt.Name() != "docker" {
		t.Errorf("Name() = %q, want %q", rt.Name(), "docker")
	}

	rt.Command = "podman"
	if rt.Name() != "podman" {
		t.Errorf("Name() = %q, want %q", rt.Name(), "podman")
	}
}

func TestDockerRuntime_Inspect(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker container inspect", []byte(inspectRunning), nil)

	c, err := rt.Inspect(context.Background(), "dev_demo")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if c.Name != "dev_demo" {
		t.Errorf("Name = %q, want dev_demo", c.Name)
	}
	if c.State != StateRunning {
		t.Errorf("State = %q", c.State)
	}
	if c.Image != "base:latest" {
		t.Errorf("Image = %q", c.Image)
	}
	if got := c.HostPort(22); got != 2222 {
		t.Errorf("HostPort(22) = %d, want 2222", got)
	}
	if len(c.Mounts) != 1 || c.Mounts[0].Destination != "/workspace" || !c.Mounts[0].ReadWrite {
		t.Errorf("Mounts = %+v", c.Mounts)
	}
	if c.Created.Year() != 2025 {
		t.Errorf("Created = %v", c.Created)
	}
}

func TestDockerRuntime_Inspect_ExitedKeepsPort(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker container inspect", []byte(inspectExited), nil)

	c, err := rt.Inspect(context.Background(), "dev_demo")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if c.State != StateExited {
		t.Errorf("State = %q", c.State)
	}
	if got := c.HostPort(22); got != 40001 {
		t.Errorf("HostPort(22) for exited container = %d, want 40001", got)
	}
	if len(c.Ports) != 1 || c.Ports[0].HostIP != "127.0.0.1" {
		t.Errorf("Ports = %+v", c.Ports)
	}
}

func TestDockerRuntime_Inspect_NotFound(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker container inspect", nil, exitErr("Error: No such container: dev_nope"))

	_, err := rt.Inspect(context.Background(), "dev_nope")
	if !errors.Is(err, ErrContainerNotFound) {
		t.Errorf("Inspect() error = %v, want ErrContainerNotFound", err)
	}
}

func TestDockerRuntime_List(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker ps", []byte("abc123def456\n"), nil)
	exec.AddResponse("docker inspect", []byte(inspectRunning), nil)

	containers, err := rt.List(context.Background(), map[string]string{"devcontainer": "true"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(containers) != 1 || containers[0].Name != "dev_demo" {
		t.Fatalf("List() = %+v", containers)
	}

	ps := exec.Commands[0]
	if !strings.Contains(strings.Join(ps.Args, " "), "--filter label=devcontainer=true") {
		t.Errorf("ps args = %v, want label filter", ps.Args)
	}
	if ps.Args[1] != "-a" {
		t.Errorf("ps should include stopped containers: %v", ps.Args)
	}
}

func TestDockerRuntime_List_Empty(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker ps", []byte(""), nil)

	containers, err := rt.List(context.Background(), map[string]string{"devcontainer": "true"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if containers == nil || len(containers) != 0 {
		t.Errorf("List() = %v, want empty slice", containers)
	}
	if len(exec.Commands) != 1 {
		t.Errorf("inspect should not run with no ids, got %d commands", len(exec.Commands))
	}
}

func TestDockerRuntime_ImageExists(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{"present", nil, true, false},
		{"missing docker", exitErr("Error: No such image: base:latest"), false, false},
		{"missing podman", exitErr("Error: base:latest: image not known"), false, false},
		{"daemon down", exitErr("Cannot connect to the Docker daemon"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, exec := newCLI()
			exec.AddResponse("docker image inspect", []byte("sha256:1\n"), tt.err)

			got, err := rt.ImageExists(context.Background(), "base:latest")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ImageExists() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ImageExists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDockerRuntime_Create(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker create", []byte("newid\n"), nil)

	id, err := rt.Create(context.Background(), CreateOptions{
		Name:       "dev_demo",
		Image:      "base:latest",
		Labels:     map[string]string{"devcontainer": "true"},
		Ports:      []PortBinding{{ContainerPort: 22, HostIP: "127.0.0.1", HostPort: 2222}},
		Mounts:     []Mount{{Source: "/home/dev/Dev/demo", Destination: "/workspace", ReadWrite: true}},
		WorkingDir: "/workspace",
		TTY:        true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != "newid" {
		t.Errorf("Create() id = %q", id)
	}

	cmd, _ := exec.LastCommand()
	got := cmd.String()
	for _, want := range []string{
		"--name dev_demo",
		"--label devcontainer=true",
		"-p 127.0.0.1:2222:22/tcp",
		"-v /home/dev/Dev/demo:/workspace:rw",
		"-w /workspace",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("create command %q missing %q", got, want)
		}
	}
	if !strings.HasSuffix(got, "base:latest") {
		t.Errorf("image should be the last argument: %q", got)
	}
}

func TestDockerRuntime_Create_Conflict(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker create", nil, exitErr(`Conflict. The container name "/dev_demo" is already in use`))

	_, err := rt.Create(context.Background(), CreateOptions{Name: "dev_demo", Image: "base:latest"})
	if !errors.Is(err, ErrNameConflict) {
		t.Errorf("Create() error = %v, want ErrNameConflict", err)
	}
}

func TestDockerRuntime_Start_PortInUse(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker start", nil, exitErr("Bind for 127.0.0.1:2222 failed: port is already allocated"))

	err := rt.Start(context.Background(), "dev_demo")
	if !errors.Is(err, ErrPortInUse) {
		t.Errorf("Start() error = %v, want ErrPortInUse", err)
	}
}

func TestDockerRuntime_StopRemove(t *testing.T) {
	rt, exec := newCLI()

	if err := rt.Stop(context.Background(), "dev_demo", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	cmd, _ := exec.LastCommand()
	if cmd.String() != "docker stop -t 5 dev_demo" {
		t.Errorf("stop command = %q", cmd.String())
	}

	if err := rt.Remove(context.Background(), "dev_demo", true); err != nil {
		t.Fatal(err)
	}
	cmd, _ = exec.LastCommand()
	if cmd.String() != "docker rm -f dev_demo" {
		t.Errorf("rm command = %q", cmd.String())
	}

	exec.AddResponse("docker rm", nil, exitErr("Error: No such container: dev_demo"))
	if err := rt.Remove(context.Background(), "dev_demo", false); !errors.Is(err, ErrContainerNotFound) {
		t.Errorf("Remove() error = %v, want ErrContainerNotFound", err)
	}
}

func TestDockerRuntime_Exec(t *testing.T) {
	rt, exec := newCLI()
	exec.AddResponse("docker exec", []byte("ssh-ed25519 AAAA\n"), nil)

	res, err := rt.Exec(context.Background(), "dev_demo", []string{"cat", "/etc/ssh/ssh_host_ed25519_key.pub"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 || res.Stdout != "ssh-ed25519 AAAA\n" {
		t.Errorf("Exec() = %+v", res)
	}

	exec.AddResponse("docker exec", nil, &system.ExitError{Name: "docker", ExitCode: 2, Stderr: "no file"})
	res, err = rt.Exec(context.Background(), "dev_demo", []string{"cat", "/nope"})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if res.ExitCode != 2 || res.Stderr != "no file" {
		t.Errorf("Exec() = %+v", res)
	}
}

func TestDockerRuntime_Build(t *testing.T) {
	tests := []struct {
		name       string
		dockerfile string
		want       string
	}{
		{"relative to context", "Dockerfile.dev", "docker build -t devbox:latest -f /src/Dockerfile.dev /src"},
		{"nested", "images/python/Dockerfile", "docker build -t devbox:latest -f /src/images/python/Dockerfile /src"},
		{"absolute", "/opt/Dockerfile", "docker build -t devbox:latest -f /opt/Dockerfile /src"},
		{"default", "", "docker build -t devbox:latest /src"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, exec := newCLI()
			var out strings.Builder

			err := rt.Build(context.Background(), BuildOptions{ContextDir: "/src", Dockerfile: tt.dockerfile, Tag: "devbox:latest", Output: &out})
			if err != nil {
				t.Fatal(err)
			}
			cmd, _ := exec.LastCommand()
			if cmd.String() != tt.want {
				t.Errorf("build command = %q, want %q", cmd.String(), tt.want)
			}
		})
	}
}
