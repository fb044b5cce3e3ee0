package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/raymyers/ralph-jmm/pkg/config"
)

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	expectedFlags := []string{"registers", "config", "strict", "output", "dollir", "dliveness", "dregalloc", "djasmin"}
	for _, flagName := range expectedFlags {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
	if cmd.Flags().ShorthandLookup("r") == nil {
		t.Error("expected -r shorthand")
	}
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"-dollir", "a.ollir"}, []string{"--dollir", "a.ollir"}},
		{[]string{"-dliveness", "-dregalloc", "-djasmin"}, []string{"--dliveness", "--dregalloc", "--djasmin"}},
		{[]string{"-r", "-1", "a.ollir"}, []string{"-r", "-1", "a.ollir"}},
		{[]string{"--dollir"}, []string{"--dollir"}},
		{[]string{"-dunknown"}, []string{"-dunknown"}},
		{[]string{}, []string{}},
	}
	for _, tt := range tests {
		got := normalizeFlags(tt.args)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("normalizeFlags(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestJasminOutputFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"sum.ollir", "sum.j"},
		{"dir/prog.ollir", "dir/prog.j"},
		{"prog.txt", "prog.txt.j"},
		{"prog", "prog.j"},
	}
	for _, tt := range tests {
		if got := jasminOutputFilename(tt.input); got != tt.want {
			t.Errorf("jasminOutputFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNoArgsShowsHelp(t *testing.T) {
	resetFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Errorf("expected no error without arguments, got %v", err)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("expected help output, got %q", out.String())
	}
}

// writeSample copies testdata/sum.ollir into a temp dir and returns its path
func writeSample(t *testing.T) string {
	t.Helper()
	src, err := os.ReadFile("../../testdata/sum.ollir")
	if err != nil {
		t.Fatalf("failed to read sum.ollir: %v", err)
	}
	path := filepath.Join(t.TempDir(), "sum.ollir")
	if err := os.WriteFile(path, src, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
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

func TestCompileWritesJasmin(t *testing.T) {
	input := writeSample(t)

	_, errOut, err := execute(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v (%s)", err, errOut)
	}

	code, err := os.ReadFile(strings.TrimSuffix(input, ".ollir") + ".j")
	if err != nil {
		t.Fatalf("expected sum.j to be written: %v", err)
	}
	for _, want := range []string{
		".class public Sum\n",
		".method public static sum(I)I\n",
		"invokestatic Sum/sum(I)I",
		"invokestatic io/println(I)V",
	} {
		if !strings.Contains(string(code), want) {
			t.Errorf("expected output to contain %q:\n%s", want, code)
		}
	}
}

func TestCompileOutputFlag(t *testing.T) {
	input := writeSample(t)
	output := filepath.Join(t.TempDir(), "custom.j")

	if _, errOut, err := execute(t, "-o", output, "-r", "0", input); err != nil {
		t.Fatalf("unexpected error: %v (%s)", err, errOut)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("expected %s to exist: %v", output, err)
	}
	if _, err := os.Stat(strings.TrimSuffix(input, ".ollir") + ".j"); err == nil {
		t.Error("default output should not be written when -o is given")
	}
}

func TestDumpFlags(t *testing.T) {
	tests := []struct {
		flag string
		want []string
	}{
		{"-dollir", []string{"import io;\n", "Sum {\n", "    Head:\n"}},
		{"-dliveness", []string{"sum:\n", "succ=", "goto Head"}},
		{"-dregalloc", []string{"sum interference (3 colours):\n", "parameter r0"}},
		{"-djasmin", []string{".class public Sum\n", "if_icmpge End"}},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			input := writeSample(t)
			out, errOut, err := execute(t, tt.flag, "-r", "0", input)
			if err != nil {
				t.Fatalf("unexpected error: %v (%s)", err, errOut)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("expected %s output to contain %q, got:\n%s", tt.flag, want, out)
				}
			}
		})
	}
}

func TestDumpsWithoutAllocation(t *testing.T) {
	input := writeSample(t)
	out, _, err := execute(t, "-dliveness", "-dregalloc", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "succ=") {
		t.Errorf("liveness should be dumped without allocation, got:\n%s", out)
	}
	if strings.Contains(out, "interference") {
		t.Errorf("no interference graph is built without allocation, got:\n%s", out)
	}
	if !strings.Contains(out, "local     r1") {
		t.Errorf("expected sequential registers, got:\n%s", out)
	}
}

func TestBudgetReport(t *testing.T) {
	input := writeSample(t)

	_, errOut, err := execute(t, "-r", "2", input)
	if err != nil {
		t.Fatalf("reports do not fail a non-strict run: %v", err)
	}
	want := "ralph-jmm: optimization error in sum: unable to allocate locals within 2 registers"
	if !strings.Contains(errOut, want) {
		t.Errorf("expected %q, got %q", want, errOut)
	}
	if strings.Contains(errOut, "in main:") {
		t.Errorf("main fits in 2 registers, got %q", errOut)
	}
}

func TestStrictFailsOnReport(t *testing.T) {
	input := writeSample(t)

	_, _, err := execute(t, "--strict", "-r", "2", input)
	if !errors.Is(err, ErrCompilation) {
		t.Fatalf("expected ErrCompilation, got %v", err)
	}
	if _, err := os.Stat(strings.TrimSuffix(input, ".ollir") + ".j"); err == nil {
		t.Error("no output should be written when a strict run fails")
	}

	if _, errOut, err := execute(t, "--strict", "-r", "3", input); err != nil {
		t.Errorf("three registers are enough: %v (%s)", err, errOut)
	}
}

func TestConfigFile(t *testing.T) {
	input := writeSample(t)
	cfg := filepath.Join(t.TempDir(), "jmm.yaml")
	content := "registerAllocation: 2\nstrict: true\ndumps: [regalloc]\n"
	if err := os.WriteFile(cfg, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, _, err := execute(t, "--config", cfg, input); !errors.Is(err, ErrCompilation) {
		t.Errorf("config budget of 2 should fail strictly, got %v", err)
	}

	out, errOut, err := execute(t, "--config", cfg, "-r", "0", input)
	if err != nil {
		t.Fatalf("-r should override the config file: %v (%s)", err, errOut)
	}
	if !strings.Contains(out, "interference") {
		t.Errorf("dumps from the config file should apply, got:\n%s", out)
	}

	out, _, err = execute(t, "--config", cfg, "-r", "0", "--dregalloc=false", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "interference") {
		t.Errorf("--dregalloc=false should remove the dump, got:\n%s", out)
	}
}

func TestConfigFileInputOnly(t *testing.T) {
	input := writeSample(t)
	cfg := filepath.Join(t.TempDir(), "jmm.yaml")
	content := "input: " + input + "\nregisterAllocation: 0\n"
	if err := os.WriteFile(cfg, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, errOut, err := execute(t, "--config", cfg); err != nil {
		t.Fatalf("unexpected error: %v (%s)", err, errOut)
	}
	if _, err := os.Stat(strings.TrimSuffix(input, ".ollir") + ".j"); err != nil {
		t.Errorf("expected output next to the configured input: %v", err)
	}
}

func TestInvalidOptions(t *testing.T) {
	input := writeSample(t)
	cfg := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(cfg, []byte("registers: 3\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"unknown config key", []string{"--config", cfg, input}},
		{"budget below -1", []string{"-r", "-2", input}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := execute(t, tt.args...)
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("expected config.ErrInvalid, got %v", err)
			}
			if !strings.HasPrefix(errOut, "ralph-jmm: ") {
				t.Errorf("expected a ralph-jmm diagnostic, got %q", errOut)
			}
		})
	}
}

func TestParseErrorReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ollir")
	if err := os.WriteFile(path, []byte("Bad {\n    .method public static f().V {\n        goto Nowhere;\n    }\n}\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, errOut, err := execute(t, path)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if !strings.Contains(errOut, "ralph-jmm: ") || !strings.Contains(errOut, "Nowhere") {
		t.Errorf("expected the undefined label in the diagnostic, got %q", errOut)
	}
}

func TestMissingInput(t *testing.T) {
	_, errOut, err := execute(t, filepath.Join(t.TempDir(), "missing.ollir"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !strings.Contains(errOut, "error reading") {
		t.Errorf("expected a read error, got %q", errOut)
	}
}
