package packagestore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/internal/protocol"
)

// ProcessDef is one launch-time process description (server or client side).
type ProcessDef struct {
	Command    string            `json:"command"`
	WorkingDir string            `json:"working_dir"`
	Env        map[string]string `json:"env"`
}

// Healthcheck is the optional startup health-check descriptor.
type Healthcheck struct {
	TCPPort    json.RawMessage `json:"tcp_port"` // template string or integer
	TimeoutSec int             `json:"timeout_sec"`
}

// Manifest is the parsed shape of manifest.json at the root of a published
// package tree.
type Manifest struct {
	GameName    string       `json:"game_name"`
	Version     string       `json:"version"`
	Type        string       `json:"type"`
	MaxPlayers  int          `json:"max_players"`
	Description string       `json:"description"`
	Server      ProcessDef   `json:"server"`
	Client      ProcessDef   `json:"client"`
	Assets      []string     `json:"assets,omitempty"`
	Healthcheck *Healthcheck `json:"healthcheck,omitempty"`
}

// ExpectedMetadata is what the caller declared at UPLOAD_BEGIN; the
// manifest found during UPLOAD_END must agree with it.
type ExpectedMetadata struct {
	GameName    string
	Type        string
	Version     string
	Description string
	MaxPlayers  int
}

// placeholderSet is the closed set of template placeholders a command or
// env value may reference. argvForbidden marks the two placeholders that
// may never appear in a command argument vector.
var placeholderSet = map[string]bool{
	"host": true, "port": true, "room_id": true, "match_id": true,
	"client_token": true, "report_token": true,
	"client_token_path": true, "report_token_path": true,
	"player_name": true, "player_count": true,
	"players_json": true, "players_csv": true, "players_json_path": true,
	"bind_host": true, "report_host": true, "report_port": true,
	"platform_protocol_version": true,
}

var argvForbidden = map[string]bool{"client_token": true, "report_token": true}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// isPlayerSlot reports whether name matches p1, p2, ... pN.
func isPlayerSlot(name string) bool {
	if len(name) < 2 || name[0] != 'p' {
		return false
	}
	for _, r := range name[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func knownPlaceholder(name string) bool {
	return placeholderSet[name] || isPlayerSlot(name)
}

// validateCommandTemplate checks a command argument-vector template against
// the closed placeholder set and the client_token/report_token argv ban.
func validateCommandTemplate(command string) error {
	for _, m := range placeholderPattern.FindAllStringSubmatch(command, -1) {
		name := m[1]
		if argvForbidden[name] {
			return protocol.NewValidation(fmt.Sprintf("command may not reference placeholder %q", name))
		}
		if !knownPlaceholder(name) {
			return protocol.NewValidation(fmt.Sprintf("unknown placeholder %q", name))
		}
	}
	return nil
}

// validateEnvTemplate checks an env-value template; unlike command argv,
// env values and file paths are exactly where secrets are meant to flow, so
// client_token/report_token are permitted here.
func validateEnvTemplate(value string) error {
	for _, m := range placeholderPattern.FindAllStringSubmatch(value, -1) {
		if !knownPlaceholder(m[1]) {
			return protocol.NewValidation(fmt.Sprintf("unknown placeholder %q", m[1]))
		}
	}
	return nil
}

func validateRelativePath(p string) error {
	if p == "" {
		return nil
	}
	if filepath.IsAbs(p) {
		return protocol.NewValidation(fmt.Sprintf("path %q must not be absolute", p))
	}
	cleaned := filepath.ToSlash(filepath.Clean(p))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return protocol.NewValidation(fmt.Sprintf("path %q must not escape the package root", p))
	}
	return nil
}

func validateProcessDef(pd ProcessDef) error {
	if err := validateCommandTemplate(pd.Command); err != nil {
		return err
	}
	if err := validateRelativePath(pd.WorkingDir); err != nil {
		return err
	}
	for k, v := range pd.Env {
		if err := validateEnvTemplate(v); err != nil {
			return fmt.Errorf("env %q: %w", k, err)
		}
	}
	return nil
}

// ValidateManifest checks schema shape, the closed placeholder set, path
// safety, and cross-checks the manifest against the caller-declared
// expected metadata from UPLOAD_BEGIN.
func ValidateManifest(m Manifest, expected ExpectedMetadata) error {
	if m.GameName == "" || m.Description == "" {
		return protocol.NewValidation("manifest missing required fields")
	}
	if !catalog.ValidType(m.Type) {
		return protocol.NewValidation("manifest type must be one of CLI, GUI, 2P, Multi")
	}
	if m.MaxPlayers <= 0 {
		return protocol.NewValidation("manifest max_players must be positive")
	}

	if expected.GameName != "" && expected.GameName != m.GameName {
		return protocol.NewValidation("manifest game_name does not match upload metadata")
	}
	if expected.Type != "" && expected.Type != m.Type {
		return protocol.NewValidation("manifest type does not match upload metadata")
	}
	if expected.MaxPlayers != 0 && expected.MaxPlayers != m.MaxPlayers {
		return protocol.NewValidation("manifest max_players does not match upload metadata")
	}

	if err := validateProcessDef(m.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateProcessDef(m.Client); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	for _, asset := range m.Assets {
		if err := validateRelativePath(asset); err != nil {
			return fmt.Errorf("assets: %w", err)
		}
	}
	if m.Healthcheck != nil && m.Healthcheck.TimeoutSec <= 0 {
		return protocol.NewValidation("healthcheck.timeout_sec must be positive")
	}

	return nil
}

func parseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, protocol.NewValidationf("manifest is not valid JSON", err)
	}
	return m, nil
}
