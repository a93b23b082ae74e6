// Command mkdisk builds and inspects Mako root filesystem images. It
// replaces the teacher's bare os.Args mkfs.go (biscuit's src/mkfs) with
// a cobra command tree, per SPEC_FULL.md's Domain Stack: mkfs/fsck/ls/
// extract subcommands over either a USTAR or an EXT2 image.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"blkdev"
	"defs"
	"ext2"
	"ustar"
	"ustr"
	"vfs"
)

var (
	fsKind   string
	diskSize int64
)

func main() {
	root := &cobra.Command{
		Use:   "mkdisk",
		Short: "build and inspect Mako root filesystem images",
	}
	root.PersistentFlags().StringVar(&fsKind, "fs", "ext2", "filesystem kind: ext2 or ustar")

	mkfsCmd := &cobra.Command{
		Use:   "mkfs <image> [skeldir]",
		Short: "create a fresh filesystem image, optionally seeded from a host directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			skel := ""
			if len(args) == 2 {
				skel = args[1]
			}
			return runMkfs(args[0], skel)
		},
	}
	mkfsCmd.Flags().Int64Var(&diskSize, "size", 32*1024*1024, "image size in bytes")

	fsckCmd := &cobra.Command{
		Use:   "fsck <image>",
		Short: "mount an image read-only and report whether the mount succeeds (a ustar mount reads nothing, so it always does)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := mountImage(args[0])
			if err != 0 {
				return fmt.Errorf("not a valid %s image: errno %d", fsKind, err)
			}
			fmt.Println("ok")
			return nil
		},
	}

	lsCmd := &cobra.Command{
		Use:   "ls <image> [path]",
		Short: "list a directory inside an image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 2 {
				path = args[1]
			}
			return runLs(args[0], path)
		},
	}

	extractCmd := &cobra.Command{
		Use:   "extract <image> <path> <outfile>",
		Short: "copy a file out of an image onto the host filesystem",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(args[0], args[1], args[2])
		},
	}

	root.AddCommand(mkfsCmd, fsckCmd, lsCmd, extractCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openOrCreateDisk(path string, create bool) (*blkdev.HostDisk, error) {
	if create {
		d, err := blkdev.CreateHostDisk(path, diskSize)
		if err != 0 {
			return nil, fmt.Errorf("create %s: errno %d", path, err)
		}
		return d, nil
	}
	d, err := blkdev.OpenHostDisk(path)
	if err != 0 {
		return nil, fmt.Errorf("open %s: errno %d", path, err)
	}
	return d, nil
}

func mountImage(path string) (vfs.Inode_i, defs.Err_t) {
	disk, err := blkdev.OpenHostDisk(path)
	if err != 0 {
		return nil, err
	}
	log := logr.Discard()
	switch fsKind {
	case "ustar":
		return ustar.Mount(disk, log)
	default:
		return ext2.Mount(disk, log)
	}
}

func mkfsImage(disk blkdev.Disk_i) (vfs.Inode_i, defs.Err_t) {
	log := logr.Discard()
	switch fsKind {
	case "ustar":
		return ustar.Mkfs(disk, log)
	default:
		return ext2.Mkfs(disk, log)
	}
}

func runMkfs(image, skeldir string) error {
	disk, err := openOrCreateDisk(image, true)
	if err != nil {
		return err
	}
	defer disk.Close()

	root, ferr := mkfsImage(disk)
	if ferr != 0 {
		return fmt.Errorf("mkfs: errno %d", ferr)
	}
	if skeldir == "" {
		return nil
	}
	return addfiles(root, skeldir)
}

// addfiles walks skeldir on the host and replicates its contents into
// root, the same flow as the teacher's mkfs.go addfiles but driven by
// the vfs.Inode_i/Data_i surface instead of a single hardcoded backend.
func addfiles(root vfs.Inode_i, skeldir string) error {
	return filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path, skeldir)
		rel = strings.TrimPrefix(rel, string(filepath.Separator))
		if rel == "" {
			return nil
		}
		dir, base := splitParent(rel)
		parent, ferr := resolveDir(root, dir)
		if ferr != 0 {
			return fmt.Errorf("resolve %q: errno %d", dir, ferr)
		}
		if d.IsDir() {
			_, ferr := parent.Mkdir(ustr.MkUstrSlice([]byte(base)), 0755)
			if ferr != 0 {
				return fmt.Errorf("mkdir %q: errno %d", rel, ferr)
			}
			return nil
		}
		node, ferr := parent.Create(ustr.MkUstrSlice([]byte(base)), 0644)
		if ferr != 0 {
			return fmt.Errorf("create %q: errno %d", rel, ferr)
		}
		return copyin(path, node)
	})
}

func splitParent(rel string) (dir, base string) {
	dir, base = filepath.Split(rel)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	if dir == "" {
		dir = "/"
	} else {
		dir = "/" + dir
	}
	return
}

func resolveDir(root vfs.Inode_i, path string) (vfs.Inode_i, defs.Err_t) {
	if path == "/" || path == "" {
		return root, 0
	}
	cur := root
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		next, err := cur.Lookup(ustr.MkUstrSlice([]byte(seg)))
		if err != 0 {
			return nil, err
		}
		cur = next
	}
	return cur, 0
}

func copyin(hostPath string, node vfs.Inode_i) error {
	data, ok := node.(vfs.Data_i)
	if !ok {
		return fmt.Errorf("%s: backend node has no data surface", hostPath)
	}
	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	var off int64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := data.Pwrite(buf[:n], off); werr != 0 {
				return fmt.Errorf("write %s: errno %d", hostPath, werr)
			}
			off += int64(n)
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func runLs(image, path string) error {
	root, err := mountImage(image)
	if err != 0 {
		return fmt.Errorf("mount: errno %d", err)
	}
	dir, err := resolveDir(root, path)
	if err != 0 {
		return fmt.Errorf("resolve %q: errno %d", path, err)
	}
	ents, err := dir.Readdir()
	if err != 0 {
		return fmt.Errorf("readdir: errno %d", err)
	}
	for _, e := range ents {
		fmt.Println(e.Name.String())
	}
	return nil
}

func runExtract(image, path, outfile string) error {
	root, err := mountImage(image)
	if err != 0 {
		return fmt.Errorf("mount: errno %d", err)
	}
	dir, base := splitParent(strings.TrimPrefix(path, "/"))
	parent, err := resolveDir(root, dir)
	if err != 0 {
		return fmt.Errorf("resolve %q: errno %d", dir, err)
	}
	node, err := parent.Lookup(ustr.MkUstrSlice([]byte(base)))
	if err != 0 {
		return fmt.Errorf("lookup %q: errno %d", path, err)
	}
	data, ok := node.(vfs.Data_i)
	if !ok {
		return fmt.Errorf("%s: not a regular file", path)
	}
	out, oerr := os.Create(outfile)
	if oerr != nil {
		return oerr
	}
	defer out.Close()

	buf := make([]byte, 64*1024)
	var off int64
	sz := data.Size()
	for off < sz {
		n, rerr := data.Pread(buf, off)
		if rerr != 0 {
			return fmt.Errorf("read %s: errno %d", path, rerr)
		}
		if n == 0 {
			break
		}
		if _, werr := out.Write(buf[:n]); werr != nil {
			return werr
		}
		off += int64(n)
	}
	return nil
}
