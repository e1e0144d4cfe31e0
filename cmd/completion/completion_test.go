package completion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func testRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "drsplit"}
	root.AddCommand(&cobra.Command{Use: "split", Short: "Split a sheet"})
	root.AddCommand(&cobra.Command{Use: "inspect", Short: "Inspect a workbook"})
	root.AddCommand(NewCommand(root))
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := testRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"completion"}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestCompletionShells(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "_drsplit"},
		{"zsh", "compdef"},
		{"fish", "complete -c drsplit"},
		{"powershell", "drsplit"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			out, err := run(t, tt.shell)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(out, "# drsplit "+tt.shell+" completion") {
				t.Errorf("missing header, got %q", firstLine(out))
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("%s completion should contain %q", tt.shell, tt.want)
			}
		})
	}
}

func TestCompletionUnsupportedShell(t *testing.T) {
	_, err := run(t, "tcsh")
	if err == nil {
		t.Fatal("expected error for unsupported shell")
	}
	if !strings.Contains(err.Error(), "unsupported shell") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompletionRequiresShell(t *testing.T) {
	if _, err := run(t); err == nil {
		t.Fatal("expected error without a shell argument")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
