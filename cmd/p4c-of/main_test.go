package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// resetFlags clears the package-level flag variables between commands.
func resetFlags() {
	dP4 = false
	dCFG = false
	dFlows = false
	dDecls = false
	outputFile = ""
	targetFile = ""
	verbose = false
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(normalizeFlags(args))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	for _, name := range []string{"dp4", "dcfg", "dflows", "ddecls", "output", "target", "verbose"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s to exist", name)
		}
	}
	if f := cmd.Flags().ShorthandLookup("o"); f == nil || f.Name != "output" {
		t.Errorf("-o is not --output")
	}
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"single-dash dcfg", []string{"-dcfg", "p.yaml"}, []string{"--dcfg", "p.yaml"}},
		{"double-dash unchanged", []string{"--dflows", "p.yaml"}, []string{"--dflows", "p.yaml"}},
		{"short flags unchanged", []string{"-o", "out.dl", "-v"}, []string{"-o", "out.dl", "-v"}},
		{"all debug flags", []string{"-dp4", "-ddecls"}, []string{"--dp4", "--ddecls"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.expected, normalizeFlags(tt.input)); diff != "" {
				t.Errorf("normalizeFlags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlagAliases(t *testing.T) {
	out, _, err := execute(t, "--dump-decls", "../../testdata/vlan_switch.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "output relation Flow(flow: string)")
}

func TestNoArgsPrintsHelp(t *testing.T) {
	out, _, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "p4c-of [file]")
}

func TestDefaultOutputFilename(t *testing.T) {
	tests := map[string]string{
		"switch.yaml":        "switch.dl",
		"dir/switch.p4.yaml": "dir/switch.p4.dl",
		"noext":              "noext.dl",
	}
	for in, want := range tests {
		if got := defaultOutputFilename(in); got != want {
			t.Errorf("defaultOutputFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWritesProgram(t *testing.T) {
	tmpDir := t.TempDir()
	src, err := os.ReadFile("../../testdata/vlan_switch.yaml")
	require.NoError(t, err)
	input := filepath.Join(tmpDir, "switch.yaml")
	require.NoError(t, os.WriteFile(input, src, 0644))

	_, errOut, err := execute(t, "-v", input)
	require.NoError(t, err, errOut)
	assert.Contains(t, errOut, "wrote")
	assert.Contains(t, errOut, "level=debug")

	data, err := os.ReadFile(filepath.Join(tmpDir, "switch.dl"))
	require.NoError(t, err)
	text := string(data)
	helpers := strings.Index(text, "function r_out_port")
	decls := strings.Index(text, "input relation MulticastGroup")
	flows := strings.Index(text, "// initialize output port")
	assert.True(t, helpers >= 0 && helpers < decls && decls < flows,
		"sections out of order: helpers %d, declarations %d, flows %d", helpers, decls, flows)

	explicit := filepath.Join(tmpDir, "other.dl")
	_, _, err = execute(t, "-o", explicit, input)
	require.NoError(t, err)
	again, err := os.ReadFile(explicit)
	require.NoError(t, err)
	assert.Equal(t, text, string(again), "compilation is not deterministic")
}

func TestBadTarget(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target.yaml")
	require.NoError(t, os.WriteFile(target, []byte("register_width: 12\n"), 0644))

	_, _, err := execute(t, "--target", target, "../../testdata/vlan_switch.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register_width must be a positive multiple of 8")

	_, _, err = execute(t, "--target", filepath.Join(tmpDir, "missing.yaml"), "../../testdata/vlan_switch.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")
}

// E2ETestSpec is one case of e2e_flows.yaml
type E2ETestSpec struct {
	Name         string   `yaml:"name"`
	Program      string   `yaml:"program"` // file under testdata/
	Input        string   `yaml:"input"`   // inline program, used when Program is empty
	Target       string   `yaml:"target"`  // inline target constants
	Args         []string `yaml:"args"`
	Expect       []string `yaml:"expect"`
	ExpectOrder  []string `yaml:"expect_order"`
	ExpectUnique []string `yaml:"expect_unique"`
	ExpectNot    []string `yaml:"expect_not"`
	ExpectError  string   `yaml:"expect_error"`
	Skip         string   `yaml:"skip,omitempty"`
}

// E2ETestFile is the structure of e2e_flows.yaml
type E2ETestFile struct {
	Tests []E2ETestSpec `yaml:"tests"`
}

func TestE2EFlowsYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/e2e_flows.yaml")
	if err != nil {
		t.Fatalf("e2e_flows.yaml not found: %v", err)
	}
	var testFile E2ETestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse e2e_flows.yaml: %v", err)
	}

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}
			tmpDir := t.TempDir()
			input := filepath.Join("../../testdata", tc.Program)
			if tc.Program == "" {
				input = filepath.Join(tmpDir, "test.yaml")
				if err := os.WriteFile(input, []byte(tc.Input), 0644); err != nil {
					t.Fatalf("failed to write test file: %v", err)
				}
			}
			args := append([]string{}, tc.Args...)
			if tc.Target != "" {
				target := filepath.Join(tmpDir, "target.yaml")
				if err := os.WriteFile(target, []byte(tc.Target), 0644); err != nil {
					t.Fatalf("failed to write target file: %v", err)
				}
				args = append(args, "--target", target)
			}
			// keep the default output next to the temporary copy
			args = append(args, "-o", filepath.Join(tmpDir, "out.dl"), input)

			output, errOut, err := execute(t, args...)
			if tc.ExpectError != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, compilation succeeded", tc.ExpectError)
				}
				if !strings.Contains(err.Error(), tc.ExpectError) {
					t.Errorf("expected error containing %q, got %v", tc.ExpectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("p4c-of failed: %v\nStderr: %s", err, errOut)
			}

			for _, exp := range tc.Expect {
				if !strings.Contains(output, exp) {
					t.Errorf("expected output to contain %q\nGot:\n%s", exp, output)
				}
			}
			lastIdx := -1
			for _, exp := range tc.ExpectOrder {
				idx := strings.Index(output, exp)
				if idx == -1 {
					t.Errorf("expected output to contain %q for order check\nGot:\n%s", exp, output)
				} else if idx <= lastIdx {
					t.Errorf("expected %q to appear after previous pattern (position %d vs %d)", exp, idx, lastIdx)
				}
				lastIdx = idx
			}
			for _, exp := range tc.ExpectUnique {
				if n := strings.Count(output, exp); n != 1 {
					t.Errorf("expected %q to appear exactly once, found %d times\nGot:\n%s", exp, n, output)
				}
			}
			for _, exp := range tc.ExpectNot {
				if strings.Contains(output, exp) {
					t.Errorf("expected output NOT to contain %q\nGot:\n%s", exp, output)
				}
			}
		})
	}
}
