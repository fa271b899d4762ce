// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// fakeDocker writes a shell script standing in for the docker CLI. It
// logs its arguments and knows one container, "present".
func fakeDocker(t *testing.T) (binary, logPath string) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()
	logPath = filepath.Join(dir, "calls.log")
	binary = filepath.Join(dir, "docker")
	script := `#!/bin/sh
echo "$*" >> '` + logPath + `'
case "$1" in
container)
	if [ "$3" = "present" ]; then
		cat <<'JSON'
[{"State":{"Running":true},"Mounts":[
 {"Type":"bind","Source":"/host_mnt/Users/dev/project","Destination":"/workspace"},
 {"Type":"volume","Source":"/var/lib/docker/volumes/x","Destination":"/cache"},
 {"Type":"bind","Source":"/Users/dev/ref","Destination":"/extra/ref"}]}]
JSON
		exit 0
	fi
	echo "Error: No such container: $3" >&2
	exit 1
	;;
rm)
	echo "Error response from daemon: No such container: $3" >&2
	exit 1
	;;
compose)
	exit 0
	;;
esac
echo "unexpected" >&2
exit 2
`
	if err := os.WriteFile(binary, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return binary, logPath
}

func TestDockerRuntimeInspect(t *testing.T) {
	binary, _ := fakeDocker(t)
	runtime := DockerRuntime{Binary: binary}

	state, err := runtime.Inspect(context.Background(), "present")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	want := &ContainerState{Running: true, Mounts: []Mount{
		{Source: "/host_mnt/Users/dev/project", Target: "/workspace"},
		{Source: "/Users/dev/ref", Target: "/extra/ref"},
	}}
	if !reflect.DeepEqual(state, want) {
		t.Errorf("state = %+v, want %+v", state, want)
	}

	missing, err := runtime.Inspect(context.Background(), "absent")
	if err != nil || missing != nil {
		t.Errorf("Inspect(absent) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestDockerRuntimeCommands(t *testing.T) {
	binary, logPath := fakeDocker(t)
	runtime := DockerRuntime{Binary: binary}
	ctx := context.Background()

	if err := runtime.ComposeUp(ctx, "airlock-00112233445566ff", "/data/docker-compose.yaml"); err != nil {
		t.Fatalf("ComposeUp: %v", err)
	}
	if err := runtime.ComposeDown(ctx, "airlock-00112233445566ff", "/data/docker-compose.yaml"); err != nil {
		t.Fatalf("ComposeDown: %v", err)
	}
	if err := runtime.RemoveContainer(ctx, "gone"); err != nil {
		t.Fatalf("RemoveContainer of a missing container: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"compose --project-name airlock-00112233445566ff --file /data/docker-compose.yaml up --detach --remove-orphans",
		"compose --project-name airlock-00112233445566ff --file /data/docker-compose.yaml down --remove-orphans",
		"rm --force gone",
	}
	if got := strings.Split(strings.TrimSpace(string(data)), "\n"); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestDockerRuntimeErrorIncludesStderr(t *testing.T) {
	binary, _ := fakeDocker(t)
	_, _, err := DockerRuntime{Binary: binary}.run(context.Background(), "bogus")
	if err == nil || !strings.Contains(err.Error(), "unexpected") {
		t.Errorf("err = %v", err)
	}
}
