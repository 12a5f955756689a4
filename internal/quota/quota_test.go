package quota_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/meigma/compcache/internal/platform"
	"github.com/meigma/compcache/internal/quota"
	"github.com/meigma/compcache/internal/testutil"
)

func fixedScan(n uint64, calls *int) quota.ScanFunc {
	return func() (uint64, error) {
		*calls++
		return n, nil
	}
}

func readRecord(t *testing.T, path string) uint64 {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("record length = %d, want 8", len(data))
	}
	return binary.NativeEndian.Uint64(data)
}

func TestAcquireBootstrapsFromScan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var calls int
	tr := quota.New(platform.OS{}, dir, fixedScan(1234, &calls))

	l, err := tr.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	if calls != 1 {
		t.Fatalf("scan calls = %d, want 1", calls)
	}
	if !l.Rebuilt() {
		t.Fatal("Rebuilt() = false, want true")
	}
	if l.Size() != 1234 {
		t.Fatalf("Size() = %d, want 1234", l.Size())
	}
	if got := readRecord(t, tr.Path()); got != 1234 {
		t.Fatalf("stored size = %d, want 1234", got)
	}
}

func TestAcquireReadsExistingRecord(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 99)
	if err := os.WriteFile(filepath.Join(dir, quota.FileName), buf[:], 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var calls int
	l, err := quota.New(platform.OS{}, dir, fixedScan(5, &calls)).Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	if calls != 0 {
		t.Fatalf("scan calls = %d, want 0", calls)
	}
	if l.Rebuilt() || l.Size() != 99 {
		t.Fatalf("Size() = %d rebuilt=%v, want 99 false", l.Size(), l.Rebuilt())
	}
}

func TestAcquireRescansShortRecord(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, quota.FileName), []byte{1, 2, 3}, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var calls int
	l, err := quota.New(platform.OS{}, dir, fixedScan(77, &calls)).Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	if calls != 1 || l.Size() != 77 {
		t.Fatalf("calls = %d size = %d, want 1 77", calls, l.Size())
	}
}

func TestWriteSizePersists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var calls int
	tr := quota.New(platform.OS{}, dir, fixedScan(0, &calls))

	l, err := tr.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.WriteSize(4096); err != nil {
		t.Fatalf("WriteSize() error = %v", err)
	}
	l.Release()
	l.Release()

	l, err = tr.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()
	if l.Size() != 4096 {
		t.Fatalf("Size() = %d, want 4096", l.Size())
	}
	if calls != 1 {
		t.Fatalf("scan calls = %d, want 1", calls)
	}
}

func TestAcquireScanFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("scan failed")
	tr := quota.New(platform.OS{}, t.TempDir(), func() (uint64, error) { return 0, boom })

	if _, err := tr.Acquire(); !errors.Is(err, boom) {
		t.Fatalf("Acquire() error = %v, want %v", err, boom)
	}
}

func TestAcquireOpenFailure(t *testing.T) {
	t.Parallel()
	fsys := testutil.NewFaultFS()
	fsys.FailAlways(testutil.OpOpenFile, os.ErrPermission)
	var calls int

	_, err := quota.New(fsys, t.TempDir(), fixedScan(0, &calls)).Acquire()
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("Acquire() error = %v, want permission error", err)
	}
}

func TestAcquireLockFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("no lock")
	fsys := testutil.NewFaultFS()
	fsys.FailAlways(testutil.OpLock, boom)
	var calls int

	_, err := quota.New(fsys, t.TempDir(), fixedScan(0, &calls)).Acquire()
	if !errors.Is(err, boom) {
		t.Fatalf("Acquire() error = %v, want %v", err, boom)
	}
	if calls != 0 {
		t.Fatalf("scan calls = %d, want 0", calls)
	}
}
