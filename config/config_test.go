package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zstd"
	"go.viam.com/test"
)

func TestDefault(t *testing.T) {
	c := Default()
	test.That(t, c.Validate(), test.ShouldBeNil)
	test.That(t, c.WorkerCount(), test.ShouldEqual, runtime.GOMAXPROCS(0))
	l, err := c.Level()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l, test.ShouldEqual, zstd.SpeedDefault)
}

func TestParse(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		c, err := Parse([]byte("workers: 3\nsnapshot_level: best\n"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.WorkerCount(), test.ShouldEqual, 3)
		l, err := c.Level()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, l, test.ShouldEqual, zstd.SpeedBestCompression)
	})

	t.Run("sequential wins over workers", func(t *testing.T) {
		c, err := Parse([]byte("workers: 8\nsequential: true\n"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.WorkerCount(), test.ShouldEqual, 1)
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := Parse([]byte("snapshot_level: ludicrous\n"))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("negative workers", func(t *testing.T) {
		_, err := Parse([]byte("workers: -1\n"))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("workers: [\n"))
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sectiontree.yaml")
	test.That(t, os.WriteFile(path, []byte("snapshot_level: fastest\n"), 0o644), test.ShouldBeNil)

	c, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.SnapshotLevel, test.ShouldEqual, "fastest")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	test.That(t, os.WriteFile(bad, []byte("workers: -2\n"), 0o644), test.ShouldBeNil)
	_, err = Load(bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad.yaml")
}
