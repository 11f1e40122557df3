package archive

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"driftscape.app/internal/persistence/snapshot"
)

type VariantMeta struct {
	Seed      int64              `json:"seed"`
	Tick      uint64             `json:"tick"`
	Quality   string             `json:"quality"`
	Terrain   snapshot.TerrainV1 `json:"terrain"`
	Chunks    int                `json:"chunks"`
	Snapshot  string             `json:"snapshot"`
	CreatedAt string             `json:"created_at"`
}

// VariantDir names the archive directory for a seed and terrain shape.
func VariantDir(dataDir string, snap snapshot.HeightfieldV1) string {
	h := fnv.New32a()
	b, _ := json.Marshal(snap.Terrain)
	_, _ = h.Write(b)
	return filepath.Join(dataDir, "archives", fmt.Sprintf("seed_%d_%08x", snap.Header.Seed, h.Sum32()))
}

// ArchiveVariantSnapshot copies the first snapshot taken of each seed and
// terrain shape into `dataDir/archives/seed_<seed>_<hash>/`. Later snapshots of
// an already archived variant are skipped.
func ArchiveVariantSnapshot(dataDir, snapshotPath string, snap snapshot.HeightfieldV1) (archivedPath string, archived bool, err error) {
	dir := VariantDir(dataDir, snap)
	if _, err := os.Stat(filepath.Join(dir, "meta.json")); err == nil {
		return "", false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := VariantMeta{
		Seed:      snap.Header.Seed,
		Tick:      snap.Header.Tick,
		Quality:   snap.Quality,
		Terrain:   snap.Terrain,
		Chunks:    len(snap.Chunks),
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// PruneSnapshots removes all but the newest keep `<tick>.snap.zst` files in dir.
func PruneSnapshots(dir string, keep int) (removed []string, err error) {
	if keep <= 0 {
		return nil, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type snapFile struct {
		name string
		tick uint64
	}
	var files []snapFile
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapFile{name, tick})
	}
	if len(files) <= keep {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].tick > files[j].tick })
	for _, f := range files[keep:] {
		path := filepath.Join(dir, f.name)
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
