package testutil

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"testing"
)

// MustFixture reads a file from the shared testdata directory and panics on
// failure. It is meant for package-level fixture variables.
func MustFixture(relPath string) []byte {
	bytes, err := os.ReadFile(fixturePath(relPath))
	if err != nil {
		panic(fmt.Sprintf("error loading fixture %s: %v", relPath, err))
	}

	return bytes
}

func Fixture(t *testing.T, relPath string) []byte {
	t.Helper()

	p := fixturePath(relPath)
	bytes, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("error loading fixture %s: %v", p, err)
	}

	return bytes
}

func fixturePath(relPath string) string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("error loading caller")
	}

	return path.Join(path.Dir(filename), "../../", "testdata", relPath)
}
