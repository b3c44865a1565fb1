package assemble

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

type fakeDrainer struct {
	content string
}

func (f *fakeDrainer) DrainInto(w io.Writer, skip map[string]bool) error {
	_, err := io.WriteString(w, f.content)
	return err
}

func TestAssembleWrapsScriptInTransaction(t *testing.T) {
	drainer := &fakeDrainer{content: "COPY nodes (a) FROM stdin;\n1\n\\.\n\n\n"}

	f, err := Assemble(t.TempDir(), drainer, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		t.Fatalf("read assembled file: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "BEGIN TRANSACTION;\n") {
		t.Errorf("expected script to start with BEGIN TRANSACTION;, got %q", out)
	}
	if !strings.HasSuffix(out, "COMMIT;") {
		t.Errorf("expected script to end with COMMIT;, got %q", out)
	}
	if !strings.Contains(out, drainer.content) {
		t.Errorf("expected drained content in output, got %q", out)
	}
}
