package host

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"vbscript/internal/errors"
	"vbscript/internal/source"
	"vbscript/internal/variant"
)

// Special folder numbers of GetSpecialFolder.
const (
	windowsFolder   = 0
	systemFolder    = 1
	temporaryFolder = 2
)

// fsError maps an operating system error to the script fault a legacy
// script expects to trap.
func fsError(err error, path string) error {
	cause := pkgerrors.Cause(err)
	switch {
	case os.IsNotExist(cause):
		return errors.Newf(errors.FileNotFound, "File not found: '%s'", path)
	case os.IsExist(cause):
		return errors.Newf(errors.FileExists, "File already exists: '%s'", path)
	case os.IsPermission(cause):
		return errors.Newf(errors.PermissionDenied, "Permission denied: '%s'", path)
	}
	return errors.FromHost("FileSystemObject", pkgerrors.Wrap(err, path))
}

// fileSystem is Scripting.FileSystemObject.
type fileSystem struct {
	h *Host
}

func (f *fileSystem) TypeName() string { return "FileSystemObject" }

func (f *fileSystem) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly("FileSystemObject", member, mode); err != nil {
		return variant.Empty(), err
	}
	h := f.h
	name := strings.ToLower(member)
	min, max := 1, 1
	switch name {
	case "createtextfile", "copyfile", "copyfolder", "deletefile", "deletefolder":
		min, max = 1, 3
	case "opentextfile":
		max = 4
	case "movefile", "movefolder", "buildpath":
		min, max = 2, 2
	case "savetofile":
		min, max = 2, 4
	case "gettempname":
		min, max = 0, 0
	case "":
		return variant.String("FileSystemObject"), nil
	}
	if err := arity("FileSystemObject."+member, args, min, max); err != nil {
		return variant.Empty(), err
	}
	var path string
	if len(args) > 0 {
		path = variant.ToString(args[0])
	}

	switch name {
	case "fileexists":
		info, err := os.Stat(h.resolve(path))
		return variant.Bool(err == nil && !info.IsDir()), nil
	case "folderexists":
		info, err := os.Stat(h.resolve(path))
		return variant.Bool(err == nil && info.IsDir()), nil
	case "getfile":
		abs := h.resolve(path)
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			return variant.Empty(), errors.Newf(errors.FileNotFound, "File not found: '%s'", path)
		}
		return variant.ObjectOf(&file{h: h, path: abs}), nil
	case "getfolder":
		abs := h.resolve(path)
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return variant.Empty(), errors.Newf(errors.PathNotFound, "Path not found: '%s'", path)
		}
		return variant.ObjectOf(&folder{h: h, path: abs}), nil
	case "createtextfile":
		overwrite, err := optBool(args, 1, true)
		if err != nil {
			return variant.Empty(), err
		}
		unicode, err := optBool(args, 2, false)
		if err != nil {
			return variant.Empty(), err
		}
		format := tristateFalse
		if unicode {
			format = tristateTrue
		}
		return h.openText(path, forWriting, true, !overwrite, format)
	case "opentextfile":
		iomode, err := optInt(args, 1, forReading)
		if err != nil {
			return variant.Empty(), err
		}
		create, err := optBool(args, 2, false)
		if err != nil {
			return variant.Empty(), err
		}
		format, err := optInt(args, 3, tristateFalse)
		if err != nil {
			return variant.Empty(), err
		}
		return h.openText(path, iomode, create, false, format)
	case "savetofile":
		return h.saveToFile(args)
	case "copyfile":
		overwrite, err := optBool(args, 2, true)
		if err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), h.copyFile(h.resolve(path), h.resolve(variant.ToString(args[1])), overwrite)
	case "copyfolder":
		overwrite, err := optBool(args, 2, true)
		if err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), h.copyFolder(h.resolve(path), h.resolve(variant.ToString(args[1])), overwrite)
	case "movefile", "movefolder":
		src, dst := h.resolve(path), h.resolve(variant.ToString(args[1]))
		if err := os.Rename(src, dst); err != nil {
			return variant.Empty(), fsError(err, path)
		}
		return variant.Empty(), nil
	case "deletefile":
		if err := os.Remove(h.resolve(path)); err != nil {
			return variant.Empty(), fsError(err, path)
		}
		return variant.Empty(), nil
	case "deletefolder":
		abs := h.resolve(path)
		if _, err := os.Stat(abs); err != nil {
			return variant.Empty(), errors.Newf(errors.PathNotFound, "Path not found: '%s'", path)
		}
		if err := os.RemoveAll(abs); err != nil {
			return variant.Empty(), fsError(err, path)
		}
		return variant.Empty(), nil
	case "createfolder":
		abs := h.resolve(path)
		if err := os.Mkdir(abs, 0o755); err != nil {
			return variant.Empty(), fsError(err, path)
		}
		return variant.ObjectOf(&folder{h: h, path: abs}), nil
	case "getspecialfolder":
		which, err := toInt(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		dir, ok := specialFolder(which)
		if !ok {
			return variant.Empty(), invalidCall("GetSpecialFolder")
		}
		return variant.ObjectOf(&folder{h: h, path: dir}), nil
	case "getabsolutepathname":
		return variant.String(h.resolve(path)), nil
	case "getfilename":
		return variant.String(filepath.Base(path)), nil
	case "getbasename":
		base := filepath.Base(path)
		return variant.String(strings.TrimSuffix(base, filepath.Ext(base))), nil
	case "getextensionname":
		return variant.String(strings.TrimPrefix(filepath.Ext(path), ".")), nil
	case "getparentfoldername":
		dir := filepath.Dir(path)
		if dir == "." {
			dir = ""
		}
		return variant.String(dir), nil
	case "buildpath":
		return variant.String(filepath.Join(path, variant.ToString(args[1]))), nil
	case "gettempname":
		return variant.String("rad" + strings.ToUpper(uuid.NewString()[:5]) + ".tmp"), nil
	}
	return variant.Empty(), unsupported("FileSystemObject", member)
}

func specialFolder(which int) (string, bool) {
	windir := os.Getenv("WINDIR")
	if windir == "" {
		windir = filepath.FromSlash("C:/Windows")
	}
	switch which {
	case windowsFolder:
		return windir, true
	case systemFolder:
		return filepath.Join(windir, "System32"), true
	case temporaryFolder:
		return os.TempDir(), true
	}
	return "", false
}

// saveToFile implements FileSystemObject.SaveToFile(name, text[,
// encoding[, overwrite]]), writing the whole text in one call. Encoding
// defaults to ANSI.
func (h *Host) saveToFile(args []variant.Variant) (variant.Variant, error) {
	path := h.resolve(variant.ToString(args[0]))
	text := variant.ToString(args[1])
	enc := optString(args, 2, source.ANSI)
	overwrite, err := optBool(args, 3, true)
	if err != nil {
		return variant.Empty(), err
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return variant.Bool(false), nil
	}
	if err := source.Save(path, text, enc); err != nil {
		log.Warnf("SaveToFile %s: %v", path, err)
		return variant.Bool(false), nil
	}
	return variant.Bool(true), nil
}

func (h *Host) copyFile(src, dst string, overwrite bool) error {
	if info, err := os.Stat(dst); err == nil {
		if info.IsDir() {
			dst = filepath.Join(dst, filepath.Base(src))
		} else if !overwrite {
			return errors.Newf(errors.FileExists, "File already exists: '%s'", dst)
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return fsError(err, src)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fsError(err, dst)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fsError(err, dst)
	}
	log.LogVf("copied %s to %s (%s)", src, dst, humanize.Bytes(uint64(n)))
	return nil
}

func (h *Host) copyFolder(src, dst string, overwrite bool) error {
	if _, err := os.Stat(src); err != nil {
		return errors.Newf(errors.PathNotFound, "Path not found: '%s'", src)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fsError(err, path)
		}
		rel, _ := filepath.Rel(src, path)
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return fsCheck(os.MkdirAll(target, 0o755), target)
		}
		return h.copyFile(path, target, overwrite)
	})
}

// fsCheck maps a possibly nil error with fsError.
func fsCheck(err error, path string) error {
	if err == nil {
		return nil
	}
	return fsError(err, path)
}

// file is the File object returned by GetFile and Folder.Files.
type file struct {
	h    *Host
	path string
}

func (f *file) TypeName() string { return "File" }

func (f *file) String() string { return f.path }

func (f *file) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	name := strings.ToLower(member)
	if name != "name" {
		if err := readOnly("File", member, mode); err != nil {
			return variant.Empty(), err
		}
	}
	switch name {
	case "", "path":
		return variant.String(f.path), nil
	case "name":
		if mode == variant.InvokeSet {
			dst := filepath.Join(filepath.Dir(f.path), variant.ToString(value(args)))
			if err := os.Rename(f.path, dst); err != nil {
				return variant.Empty(), fsError(err, f.path)
			}
			f.path = dst
			return variant.Empty(), nil
		}
		return variant.String(filepath.Base(f.path)), nil
	case "parentfolder":
		return variant.ObjectOf(&folder{h: f.h, path: filepath.Dir(f.path)}), nil
	case "size", "datecreated", "datelastmodified", "datelastaccessed", "type":
		info, err := os.Stat(f.path)
		if err != nil {
			return variant.Empty(), fsError(err, f.path)
		}
		return fileInfo(name, info)
	case "delete":
		return variant.Empty(), fsCheck(os.Remove(f.path), f.path)
	case "copy":
		if err := arity("File.Copy", args, 1, 2); err != nil {
			return variant.Empty(), err
		}
		overwrite, err := optBool(args, 1, true)
		if err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), f.h.copyFile(f.path, f.h.resolve(variant.ToString(args[0])), overwrite)
	case "move":
		if err := arity("File.Move", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		dst := f.h.resolve(variant.ToString(args[0]))
		if err := os.Rename(f.path, dst); err != nil {
			return variant.Empty(), fsError(err, f.path)
		}
		f.path = dst
		return variant.Empty(), nil
	case "openastextstream":
		iomode, err := optInt(args, 0, forReading)
		if err != nil {
			return variant.Empty(), err
		}
		format, err := optInt(args, 1, tristateFalse)
		if err != nil {
			return variant.Empty(), err
		}
		return f.h.openText(f.path, iomode, false, false, format)
	}
	return variant.Empty(), unsupported("File", member)
}

func fileInfo(member string, info fs.FileInfo) (variant.Variant, error) {
	switch member {
	case "size":
		return variant.Int(info.Size()), nil
	case "type":
		if info.IsDir() {
			return variant.String("File folder"), nil
		}
		ext := strings.TrimPrefix(filepath.Ext(info.Name()), ".")
		return variant.String(strings.ToUpper(ext) + " File"), nil
	}
	// creation and access times are not portable; modification time stands in
	t := info.ModTime()
	return variant.Date(variant.FloatToDate(variant.DateToFloat(t.Local()))), nil
}

// folder is the Folder object returned by GetFolder.
type folder struct {
	h    *Host
	path string
}

func (f *folder) TypeName() string { return "Folder" }

func (f *folder) String() string { return f.path }

func (f *folder) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly("Folder", member, mode); err != nil {
		return variant.Empty(), err
	}
	name := strings.ToLower(member)
	switch name {
	case "", "path":
		return variant.String(f.path), nil
	case "name":
		return variant.String(filepath.Base(f.path)), nil
	case "isrootfolder":
		return variant.Bool(filepath.Dir(f.path) == f.path), nil
	case "parentfolder":
		if filepath.Dir(f.path) == f.path {
			return variant.Nothing(), nil
		}
		return variant.ObjectOf(&folder{h: f.h, path: filepath.Dir(f.path)}), nil
	case "size":
		var total int64
		err := filepath.WalkDir(f.path, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				info, err := d.Info()
				if err != nil {
					return err
				}
				total += info.Size()
			}
			return nil
		})
		if err != nil {
			return variant.Empty(), fsError(err, f.path)
		}
		log.LogVf("folder %s holds %s", f.path, humanize.Bytes(uint64(total)))
		return variant.Int(total), nil
	case "datecreated", "datelastmodified", "datelastaccessed", "type":
		info, err := os.Stat(f.path)
		if err != nil {
			return variant.Empty(), fsError(err, f.path)
		}
		return fileInfo(name, info)
	case "files", "subfolders":
		entries, err := os.ReadDir(f.path)
		if err != nil {
			return variant.Empty(), fsError(err, f.path)
		}
		c := &collection{class: "Files"}
		if name == "subfolders" {
			c.class = "Folders"
		}
		for _, e := range entries {
			full := filepath.Join(f.path, e.Name())
			switch {
			case e.IsDir() && name == "subfolders":
				c.items = append(c.items, variant.ObjectOf(&folder{h: f.h, path: full}))
			case !e.IsDir() && name == "files":
				c.items = append(c.items, variant.ObjectOf(&file{h: f.h, path: full}))
			default:
				continue
			}
			c.names = append(c.names, e.Name())
		}
		return c.index(args)
	case "delete":
		return variant.Empty(), fsCheck(os.RemoveAll(f.path), f.path)
	case "copy":
		if err := arity("Folder.Copy", args, 1, 2); err != nil {
			return variant.Empty(), err
		}
		overwrite, err := optBool(args, 1, true)
		if err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), f.h.copyFolder(f.path, f.h.resolve(variant.ToString(args[0])), overwrite)
	case "move":
		if err := arity("Folder.Move", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		dst := f.h.resolve(variant.ToString(args[0]))
		if err := os.Rename(f.path, dst); err != nil {
			return variant.Empty(), fsError(err, f.path)
		}
		f.path = dst
		return variant.Empty(), nil
	case "createtextfile":
		if err := arity("Folder.CreateTextFile", args, 1, 3); err != nil {
			return variant.Empty(), err
		}
		fso := &fileSystem{h: f.h}
		args = append([]variant.Variant{variant.String(filepath.Join(f.path, variant.ToString(args[0])))}, args[1:]...)
		return fso.Invoke("CreateTextFile", args, variant.InvokeGet)
	}
	return variant.Empty(), unsupported("Folder", member)
}
