package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	configPath string
	stateDir   string
}

func setupCLITestEnv(t *testing.T) cliTestEnv {
	t.Helper()

	root := t.TempDir()
	stateDir := filepath.Join(root, "state")
	configPath := filepath.Join(root, "config.toml")

	contents := fmt.Sprintf(`[paths]
draft_dir = %q
materials_dir = %q
log_dir = %q
state_dir = %q

[coze]
token = "test-token"
workflow_id = "wf-123"

[feishu]
app_id = "cli_app"
app_secret = "cli_secret"
app_token = "cli_base"

[feishu.content_table]
table_id = "tblcontent"
`,
		filepath.Join(root, "drafts"),
		filepath.Join(root, "materials"),
		filepath.Join(root, "logs"),
		stateDir,
	)
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return cliTestEnv{configPath: configPath, stateDir: stateDir}
}

func runCLI(t *testing.T, env cliTestEnv, args ...string) (string, error) {
	t.Helper()

	full := append([]string{"--config", env.configPath}, args...)
	cmd := newRootCommand()
	cmd.SetArgs(full)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}
