package index

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/example/filepicker/internal/model"
)

type scanJob struct {
	absDir string
	relDir string
	chain  []gitignoreRule
}

// Rescan performs a full parallel re-walk of Base using a fixed worker
// pool sized cfg.MaxThreads, then atomically publishes the result as a
// new generation. It is used both for the
// initial scan and for on-demand full rescans when incremental apply isn't
// viable (e.g. a .gitignore changed, or the watcher's pending set
// overflowed).
func (ix *Index) Rescan() error {
	base := ix.Base()
	records, err := ix.parallelScan(base)
	if err != nil {
		return &ErrScanFailed{Path: base, Err: err}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.generation.Add(1)
	ix.entries = make(map[string]*model.FileRecord, len(records))
	for _, r := range records {
		ix.entries[r.AbsolutePath] = r
	}
	ix.nextID.Store(uint64(len(records)))
	ix.publish()
	return nil
}

func (ix *Index) parallelScan(base string) ([]*model.FileRecord, error) {
	if _, err := os.Lstat(base); err != nil {
		return nil, err
	}

	jobs := make(chan scanJob, 1<<16)
	var jobsWG sync.WaitGroup
	var resultsMu sync.Mutex
	var results []*model.FileRecord
	var idCounter atomic.Uint64

	// push hands a job to the channel from its own goroutine rather than
	// the caller's, so a worker queuing many subdirectories at once never
	// blocks on a full buffer: blocking there with every worker doing the
	// same would deadlock once the buffer fills and nothing is left to
	// drain it.
	push := func(j scanJob) {
		jobsWG.Add(1)
		go func() { jobs <- j }()
	}

	var rootChain []gitignoreRule
	if r, ok := compileGitignore(base, ""); ok {
		rootChain = append(rootChain, r)
	}
	push(scanJob{absDir: base, relDir: "", chain: rootChain})

	go func() {
		jobsWG.Wait()
		close(jobs)
	}()

	threads := ix.cfg.MaxThreads
	var workerWG sync.WaitGroup
	workerWG.Add(threads)
	for i := 0; i < threads; i++ {
		go func() {
			defer workerWG.Done()
			for j := range jobs {
				local := ix.scanDir(j, &idCounter, push)
				if len(local) > 0 {
					resultsMu.Lock()
					results = append(results, local...)
					resultsMu.Unlock()
				}
				jobsWG.Done()
			}
		}()
	}
	workerWG.Wait()
	return results, nil
}

// scanDir enumerates one directory, filtering hidden/ignored entries,
// stats survivors, and either appends a FileRecord or pushes a subdirectory
// job. Permission errors on individual entries are skipped, never fatal;
// the caller treats a failure to read the directory itself the same way
// (best-effort scan).
func (ix *Index) scanDir(j scanJob, idCounter *atomic.Uint64, push func(scanJob)) []*model.FileRecord {
	dirEntries, err := os.ReadDir(j.absDir)
	if err != nil {
		return nil
	}

	var local []*model.FileRecord
	for _, de := range dirEntries {
		name := de.Name()
		rel := name
		if j.relDir != "" {
			rel = path.Join(j.relDir, name)
		}
		isDir := de.IsDir()
		isSymlink := de.Type()&fs.ModeSymlink != 0

		if ix.cfg.Ignore(rel, isDir) {
			continue
		}
		if ignoredByChain(j.chain, rel) {
			continue
		}

		abs := filepath.Join(j.absDir, name)

		if isSymlink {
			target, err := os.Stat(abs)
			if err != nil || target.IsDir() {
				// Broken link, or a symlinked directory: symlinked
				// directories are never followed, to avoid unbounded cycles.
				continue
			}
			local = append(local, buildRecord(abs, rel, name, isSymlink, target, idCounter))
			continue
		}

		if isDir {
			childChain := j.chain
			if r, ok := compileGitignore(abs, rel); ok {
				childChain = append(append([]gitignoreRule(nil), j.chain...), r)
			}
			push(scanJob{absDir: abs, relDir: rel, chain: childChain})
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}
		local = append(local, buildRecord(abs, rel, name, false, info, idCounter))
	}
	return local
}

func buildRecord(abs, rel, name string, isSymlink bool, info os.FileInfo, idCounter *atomic.Uint64) *model.FileRecord {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	id := idCounter.Add(1) - 1
	return model.NewFileRecord(abs, filepath.ToSlash(rel), name, ext, isSymlink, id, uint64(info.Size()), info.ModTime())
}
