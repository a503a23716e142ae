package runtime

import (
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
)

func TestFromInspect_ExitedUsesPortBindings(t *testing.T) {
	info := types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:         "abc",
			Name:       "/dev_demo",
			Created:    "2025-03-01T10:00:00Z",
			State:      &types.ContainerState{Status: "exited"},
			HostConfig: &container.HostConfig{PortBindings: nat.PortMap{"22/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "40001"}}}},
		},
		Config:          &container.Config{Image: "base:latest"},
		NetworkSettings: &types.NetworkSettings{},
		Mounts:          []types.MountPoint{{Type: mount.TypeBind, Source: "/src", Destination: "/workspace", RW: true}},
	}

	c := fromInspect(info)
	if c.State != StateExited {
		t.Errorf("State = %q", c.State)
	}
	if got := c.HostPort(22); got != 40001 {
		t.Errorf("HostPort(22) for exited container = %d, want 40001", got)
	}
	if !c.Created.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Created = %v", c.Created)
	}
	if len(c.Mounts) != 1 || c.Mounts[0].Type != "bind" || !c.Mounts[0].ReadWrite {
		t.Errorf("Mounts = %+v", c.Mounts)
	}
}

func TestFromInspect_RunningPrefersPublishedPorts(t *testing.T) {
	info := types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State:      &types.ContainerState{Status: "running"},
			HostConfig: &container.HostConfig{PortBindings: nat.PortMap{"22/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "40001"}}}},
		},
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{
				Ports: nat.PortMap{"22/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "40001"}}},
			},
		},
	}

	c := fromInspect(info)
	if len(c.Ports) != 1 || c.HostPort(22) != 40001 {
		t.Errorf("Ports = %+v", c.Ports)
	}
}

func TestFromInspect(t *testing.T) {
	info := types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:      "abc",
			Name:    "/dev_demo",
			Created: "2025-03-01T10:00:00Z",
			State:   &types.ContainerState{Status: "running"},
		},
		Config: &container.Config{Image: "base:latest", Labels: map[string]string{"devcontainer": "true"}},
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{
				Ports: nat.PortMap{"22/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "2222"}}},
			},
		},
	}

	c := fromInspect(info)
	if c.Name != "dev_demo" || c.State != StateRunning || c.Image != "base:latest" {
		t.Errorf("fromInspect() = %+v", c)
	}
	if c.HostPort(22) != 2222 {
		t.Errorf("HostPort(22) = %d", c.HostPort(22))
	}
	if c.Created.IsZero() {
		t.Error("Created not parsed")
	}
}

func TestFromInspect_NilSections(t *testing.T) {
	c := fromInspect(types.ContainerJSON{})
	if c.Name != "" || c.HostPort(22) != 0 {
		t.Errorf("fromInspect(empty) = %+v", c)
	}
}

func TestPortSpecs(t *testing.T) {
	exposed, bindings, err := portSpecs([]PortBinding{{ContainerPort: 22, HostIP: "127.0.0.1", HostPort: 2222}})
	if err != nil {
		t.Fatal(err)
	}
	port := nat.Port("22/tcp")
	if _, ok := exposed[port]; !ok {
		t.Errorf("exposed = %v, want 22/tcp", exposed)
	}
	if b := bindings[port]; len(b) != 1 || b[0].HostPort != "2222" || b[0].HostIP != "127.0.0.1" {
		t.Errorf("bindings = %v", bindings)
	}
}

func TestIsPortInUseMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Bind for 0.0.0.0:2222 failed: port is already allocated", true},
		{"listen tcp4 127.0.0.1:2222: bind: address already in use", true},
		{"No such image", false},
	}
	for _, tt := range tests {
		if got := isPortInUseMessage(tt.msg); got != tt.want {
			t.Errorf("isPortInUseMessage(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}
