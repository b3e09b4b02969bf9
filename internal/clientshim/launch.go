package clientshim

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/forgegames/platform/internal/protocol"
)

// LaunchContext carries the values GAME.START returned for this room, the
// client-side analogue of the launcher's server-side launch context.
type LaunchContext struct {
	Host        string
	Port        int
	ClientToken string
	PlayerName  string
	RoomID      int
}

// argvForbidden mirrors the manifest validator's server-side rule: secrets
// must never appear in a spawned process's argument vector, where they
// would be visible to every other process on the host via /proc or ps.
var argvForbidden = map[string]bool{"client_token": true}

var templatePlaceholder = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

func (lc LaunchContext) values() map[string]string {
	return map[string]string{
		"host":         lc.Host,
		"port":         strconv.Itoa(lc.Port),
		"client_token": lc.ClientToken,
		"player_name":  lc.PlayerName,
		"room_id":      strconv.Itoa(lc.RoomID),
	}
}

func renderTemplate(tmpl string, ctx map[string]string, forbidSecrets bool) (string, error) {
	var renderErr error
	out := templatePlaceholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]
		if forbidSecrets && argvForbidden[name] {
			renderErr = protocol.NewValidation(fmt.Sprintf("client command may not reference placeholder %q", name))
			return match
		}
		v, ok := ctx[name]
		if !ok {
			renderErr = protocol.NewInternal("render client launch template", fmt.Errorf("no value for placeholder %q", name))
			return match
		}
		return v
	})
	if renderErr != nil {
		return "", renderErr
	}
	return out, nil
}

// Launch spawns installed's client process for the given launch context.
// Secrets are provisioned only via the environment, never the argument
// vector, matching the server launcher's placeholder discipline.
func Launch(installed Installed, lc LaunchContext) (*os.Process, error) {
	proc := installed.Manifest.Client
	ctx := lc.values()

	command, err := renderTemplate(proc.Command, ctx, true)
	if err != nil {
		return nil, err
	}
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, protocol.NewValidation("client command is empty")
	}

	workDir := installed.Path
	if proc.WorkingDir != "" {
		workDir = filepath.Join(installed.Path, proc.WorkingDir)
	}

	env := os.Environ()
	for k, v := range proc.Env {
		rendered, err := renderTemplate(v, ctx, false)
		if err != nil {
			return nil, err
		}
		env = append(env, k+"="+rendered)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, protocol.NewInternal("spawn game client", err)
	}
	return cmd.Process, nil
}
