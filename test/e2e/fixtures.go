package e2e

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteTree creates the corpus entries under root. Files get their relative path as content
// so sizes differ. Symlinks are created after everything they may point to.
func WriteTree(root string, entries []Entry) error {
	var links []Entry
	for _, e := range entries {
		p := filepath.Join(root, filepath.FromSlash(e.Path))
		switch {
		case e.Link != "":
			links = append(links, e)
		case e.Dir:
			if err := os.MkdirAll(p, 0755); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(p, []byte(e.Path), 0644); err != nil {
				return err
			}
		}
	}
	for _, e := range links {
		p := filepath.Join(root, filepath.FromSlash(e.Path))
		target := filepath.Join(root, filepath.FromSlash(e.Link))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.Symlink(target, p); err != nil {
			return fmt.Errorf("symlink %s: %w", e.Path, err)
		}
	}
	return nil
}
