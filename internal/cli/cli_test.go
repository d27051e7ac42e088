package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/soyeahso/storyforge/internal/agent"
	"github.com/soyeahso/storyforge/internal/config"
	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHome points storyforge at a fresh base directory with instant
// built-in agents and no completion credentials.
func testHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("STORYFORGE_HOME", home)
	t.Setenv("STORYFORGE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("STORYFORGE_STORE_DRIVER", "")
	t.Setenv("STORYFORGE_STORE_DSN", "")

	_, _, err := runCLI(t, "config", "set", "workflow.builtinDelayMs", "0")
	require.NoError(t, err)
	return home
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var uploadedID = regexp.MustCompile(`as ([0-9a-f-]{36})`)
var createdID = regexp.MustCompile(`\(([0-9a-f-]{36})\)`)

func TestVersionCmd(t *testing.T) {
	testHome(t)
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "storyforge")
}

func TestConfigCmds(t *testing.T) {
	home := testHome(t)

	out, _, err := runCLI(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)

	_, _, err = runCLI(t, "config", "set", "completion.defaultModel", "gpt-4")
	require.NoError(t, err)
	out, _, err = runCLI(t, "config", "get", "completion.defaultModel")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4\n", out)

	out, _, err = runCLI(t, "config", "get", "workflow")
	require.NoError(t, err)
	assert.Contains(t, out, "builtinDelayMs: 0")

	_, _, err = runCLI(t, "config", "unset", "completion.defaultModel")
	require.NoError(t, err)
	_, _, err = runCLI(t, "config", "get", "completion.defaultModel")
	assert.ErrorContains(t, err, "not found")

	_, _, err = runCLI(t, "config", "get", "completion.__proto__")
	assert.Error(t, err)
}

func TestConfigSetRejectsInvalid(t *testing.T) {
	home := testHome(t)
	before, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)

	_, stderr, err := runCLI(t, "config", "set", "completion.provider", "bogus")
	assert.ErrorContains(t, err, "config not saved")
	assert.Contains(t, stderr, "completion.provider")

	_, _, err = runCLI(t, "config", "set", "gateway.port", "not-a-port")
	assert.ErrorContains(t, err, "invalid config")

	after, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	out, _, err := runCLI(t, "resource", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "(no resources)")
}

func TestResourceLifecycle(t *testing.T) {
	home := testHome(t)
	file := filepath.Join(home, "checkout.md")
	require.NoError(t, os.WriteFile(file, []byte("# Checkout\n\nShoppers pay by card.\n"), 0o600))

	out, _, err := runCLI(t, "resource", "upload", file, "--title", "Checkout", "--description", "payment notes")
	require.NoError(t, err)
	m := uploadedID.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]
	assert.Contains(t, out, "(md)")

	out, _, err = runCLI(t, "resource", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Checkout")

	out, _, err = runCLI(t, "resource", "search", "BY CARD")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, _, err = runCLI(t, "resource", "search", "refund")
	require.NoError(t, err)
	assert.Contains(t, out, "(no resources)")

	out, _, err = runCLI(t, "resource", "show", id, "--content")
	require.NoError(t, err)
	assert.Contains(t, out, "payment notes")
	assert.Contains(t, out, "Shoppers pay by card.")

	out, _, err = runCLI(t, "resource", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Resource deleted successfully")

	_, _, err = runCLI(t, "resource", "show", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResourceUploadUnsupported(t *testing.T) {
	home := testHome(t)
	file := filepath.Join(home, "setup.exe")
	require.NoError(t, os.WriteFile(file, []byte("MZ"), 0o600))

	_, _, err := runCLI(t, "resource", "upload", file, "--title", "Setup")
	assert.ErrorIs(t, err, parser.ErrUnsupportedType)

	out, _, err := runCLI(t, "resource", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "(no resources)")
}

func TestResourceUploadRequiresTitle(t *testing.T) {
	home := testHome(t)
	file := filepath.Join(home, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("Plenty of readable notes here."), 0o600))

	_, _, err := runCLI(t, "resource", "upload", file)
	assert.ErrorContains(t, err, `"title"`)

	_, _, err = runCLI(t, "resource", "upload", file, "--title", "  ")
	assert.ErrorIs(t, err, domain.ErrMissingField)

	out, _, err := runCLI(t, "resource", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "(no resources)")
}

func TestAgentLifecycle(t *testing.T) {
	testHome(t)

	out, _, err := runCLI(t, "agent", "create",
		"--name", "Risk Finder",
		"--description", "Finds delivery risks",
		"--icon", "R",
		"--category", "analysis",
		"--color", "bg-red-500",
		"--system-prompt", "List the risks.",
		"--model", "gpt-4")
	require.NoError(t, err)
	m := createdID.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out, _, err = runCLI(t, "agent", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Risk Finder")

	out, _, err = runCLI(t, "agent", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Temp:      0.70")
	assert.Contains(t, out, "MaxTokens: 1000")
	assert.Contains(t, out, "Color:     bg-red-500")

	out, _, err = runCLI(t, "agent", "update", id, "--temperature", "1.2", "--name", "Risk Radar")
	require.NoError(t, err)
	assert.Contains(t, out, "Risk Radar")
	assert.Contains(t, out, "Temp:      1.20")
	assert.Contains(t, out, "Model:     gpt-4")

	_, _, err = runCLI(t, "agent", "update", id, "--category", "poetry")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "category", ve.Field)

	out, _, err = runCLI(t, "agent", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Agent deleted successfully")

	_, _, err = runCLI(t, "agent", "delete", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAgentCreateDefaultsColorFromCategory(t *testing.T) {
	testHome(t)

	out, _, err := runCLI(t, "agent", "create",
		"--name", "Checker",
		"--description", "Checks acceptance criteria",
		"--icon", "C",
		"--category", "validation",
		"--system-prompt", "Check the criteria.",
		"--model", "gpt-4")
	require.NoError(t, err)
	m := createdID.FindStringSubmatch(out)
	require.Len(t, m, 2, out)

	out, _, err = runCLI(t, "agent", "show", m[1])
	require.NoError(t, err)
	assert.Contains(t, out, "Color:     "+domain.CategoryValidation.Color())
}

func TestAgentCreateMissingField(t *testing.T) {
	testHome(t)
	_, _, err := runCLI(t, "agent", "create", "--name", "Half done")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "description", ve.Field)
}

func TestAgentBuiltinAndShow(t *testing.T) {
	testHome(t)
	out, _, err := runCLI(t, "agent", "builtin")
	require.NoError(t, err)
	for _, b := range agent.BuiltIns() {
		assert.Contains(t, out, b.Name)
	}

	out, _, err = runCLI(t, "agent", "show", "agent-3")
	require.NoError(t, err)
	assert.Contains(t, out, "User Story")
	assert.Contains(t, out, "built-in")
}

func TestRunChainsBuiltIns(t *testing.T) {
	home := testHome(t)
	file := filepath.Join(home, "cart.txt")
	require.NoError(t, os.WriteFile(file, []byte("Shoppers add items to the cart."), 0o600))
	out, _, err := runCLI(t, "resource", "upload", file, "--title", "Cart")
	require.NoError(t, err)
	rid := uploadedID.FindStringSubmatch(out)[1]

	out, errOut, err := runCLI(t, "run", "-v", "-a", "agent-1", "-a", "agent-3", "-r", rid, "Build checkout")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Contains(t, errOut, "[step 1]")
	assert.Contains(t, errOut, "Requirements Analysis (completed)")
	assert.Contains(t, errOut, "[step 2]")
	assert.Contains(t, errOut, "User Story (completed)")
}

func TestRunCustomAgentNotConfigured(t *testing.T) {
	testHome(t)
	out, _, err := runCLI(t, "agent", "create",
		"--name", "Writer", "--description", "Writes", "--icon", "W",
		"--category", "generation", "--color", "bg-blue-500", "--system-prompt", "Write.")
	require.NoError(t, err)
	id := createdID.FindStringSubmatch(out)[1]

	_, _, err = runCLI(t, "run", "-a", "agent-1", "-a", id, "-i", "Build checkout")
	assert.ErrorContains(t, err, "completion API is not configured")
}

func TestRunValidation(t *testing.T) {
	testHome(t)

	_, _, err := runCLI(t, "run", "Build checkout")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "agent", ve.Field)

	_, _, err = runCLI(t, "run", "-a", "agent-1")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "input", ve.Field)

	_, _, err = runCLI(t, "run", "-a", "ghost", "text")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusCmd(t *testing.T) {
	testHome(t)
	out, _, err := runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Gateway: port=18789 bind=loopback")
	assert.Contains(t, out, "Completion: not configured")
	assert.Contains(t, out, "Store:   sqlite resources=0 agents=0")
}

func TestCompletionSaverKeepsKeyReference(t *testing.T) {
	home := testHome(t)
	path := filepath.Join(home, "config.yaml")
	_, _, err := runCLI(t, "config", "set", "completion.apiKey", "${MY_KEY}")
	require.NoError(t, err)

	temp := 0.2
	current := config.CompletionConfig{Provider: "openai", APIKey: "sk-expanded"}
	save := completionSaver(path, current)

	next := current
	next.DefaultModel = "gpt-4"
	next.DefaultTemperature = &temp
	require.NoError(t, save(next))

	raw, err := config.LoadRaw(path)
	require.NoError(t, err)
	key, _ := config.GetValueAtPath(raw, []string{"completion", "apiKey"})
	assert.Equal(t, "${MY_KEY}", key)
	model, _ := config.GetValueAtPath(raw, []string{"completion", "defaultModel"})
	assert.Equal(t, "gpt-4", model)
	delay, _ := config.GetValueAtPath(raw, []string{"workflow", "builtinDelayMs"})
	assert.Equal(t, 0, delay)

	next.APIKey = "sk-new"
	require.NoError(t, save(next))
	raw, err = config.LoadRaw(path)
	require.NoError(t, err)
	key, _ = config.GetValueAtPath(raw, []string{"completion", "apiKey"})
	assert.Equal(t, "sk-new", key)
	_, ok := config.GetValueAtPath(raw, []string{"completion", "models"})
	assert.False(t, ok, "unchanged models are not written")

	next.Models = []config.ModelEntry{{ID: "gpt-4o", Name: "GPT-4o", MaxTokens: 16384}}
	require.NoError(t, save(next))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, next.Models, cfg.Completion.Models)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"0.7", 0.7},
		{"123abc", "123abc"},
		{"gpt-4", "gpt-4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseValue(tt.in), tt.in)
	}
}
