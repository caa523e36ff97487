package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parcadei/ouros-go/object"
)

// handleOS services one OS-primitive suspension. Every handler except
// getenv (which takes a variable name) and get_environ (which takes no
// argument) takes the path as its first positional argument, matching the
// pathlib-style calling convention CALL_OS arguments are packed with.
func (sb *Sandbox) handleOS(name string, args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	switch name {
	case "exists", "is_file", "is_dir", "is_symlink":
		return sb.osPredicate(name, args)
	case "read_text":
		return sb.osReadText(args)
	case "read_bytes":
		return sb.osReadBytes(args)
	case "resolve", "absolute":
		return sb.osResolve(args)
	case "stat":
		return sb.osStat(args)
	case "iterdir":
		return sb.osIterdir(args)
	case "write_text":
		return sb.osWriteText(args)
	case "write_bytes":
		return sb.osWriteBytes(args)
	case "mkdir":
		return sb.osMkdir(args, kwargs)
	case "unlink":
		return sb.osUnlink(args)
	case "rmdir":
		return sb.osRmdir(args)
	case "rename":
		return sb.osRename(args)
	case "getenv":
		return sb.osGetenv(args)
	case "get_environ":
		return sb.osGetEnviron()
	default:
		return object.Object{}, fmt.Errorf("sandbox: unrecognized OS function %q", name)
	}
}

func pathArg(args []object.Object) (string, error) {
	if len(args) == 0 || args[0].Kind != object.KindStr {
		return "", fmt.Errorf("sandbox: OS function expects a path string argument")
	}
	return args[0].Str, nil
}

func (sb *Sandbox) osPredicate(name string, args []object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	info, statErr := os.Lstat(path)
	switch name {
	case "exists":
		return object.Bool(statErr == nil), nil
	case "is_symlink":
		return object.Bool(statErr == nil && info.Mode()&os.ModeSymlink != 0), nil
	}
	// is_file/is_dir follow symlinks, unlike is_symlink above.
	info, statErr = os.Stat(path)
	if statErr != nil {
		return object.Bool(false), nil
	}
	if name == "is_dir" {
		return object.Bool(info.IsDir()), nil
	}
	return object.Bool(info.Mode().IsRegular()), nil
}

func (sb *Sandbox) osReadText(args []object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return object.Object{}, err
	}
	return object.Str(string(data)), nil
}

func (sb *Sandbox) osReadBytes(args []object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return object.Object{}, err
	}
	return object.BytesVal(data), nil
}

func (sb *Sandbox) osResolve(args []object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return object.Object{}, err
	}
	return object.Str(filepath.Clean(abs)), nil
}

func (sb *Sandbox) osStat(args []object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return object.Object{}, err
	}
	entries := []object.DictEntry{
		{Key: object.Str("size"), Value: object.Int(info.Size())},
		{Key: object.Str("mode"), Value: object.Int(int64(info.Mode().Perm()))},
		{Key: object.Str("mtime"), Value: object.Float(float64(info.ModTime().Unix()))},
		{Key: object.Str("is_dir"), Value: object.Bool(info.IsDir())},
		{Key: object.Str("is_file"), Value: object.Bool(info.Mode().IsRegular())},
	}
	return object.Dict(entries), nil
}

func (sb *Sandbox) osIterdir(args []object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return object.Object{}, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	items := make([]object.Object, len(names))
	for i, n := range names {
		items[i] = object.Str(n)
	}
	return object.List(items), nil
}

func (sb *Sandbox) osWriteText(args []object.Object) (object.Object, error) {
	if len(args) < 2 || args[0].Kind != object.KindStr || args[1].Kind != object.KindStr {
		return object.Object{}, fmt.Errorf("sandbox: write_text expects (path, text)")
	}
	if err := os.WriteFile(args[0].Str, []byte(args[1].Str), 0o644); err != nil {
		return object.Object{}, err
	}
	return object.None(), nil
}

func (sb *Sandbox) osWriteBytes(args []object.Object) (object.Object, error) {
	if len(args) < 2 || args[0].Kind != object.KindStr || args[1].Kind != object.KindBytes {
		return object.Object{}, fmt.Errorf("sandbox: write_bytes expects (path, bytes)")
	}
	if err := os.WriteFile(args[0].Str, args[1].Bytes, 0o644); err != nil {
		return object.Object{}, err
	}
	return object.None(), nil
}

func (sb *Sandbox) osMkdir(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	parents := false
	if p, ok := kwargs["parents"]; ok && p.Kind == object.KindBool {
		parents = p.Bool
	}
	if parents {
		err = os.MkdirAll(path, 0o755)
	} else {
		err = os.Mkdir(path, 0o755)
	}
	if err != nil {
		return object.Object{}, err
	}
	return object.None(), nil
}

func (sb *Sandbox) osUnlink(args []object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	if err := os.Remove(path); err != nil {
		return object.Object{}, err
	}
	return object.None(), nil
}

func (sb *Sandbox) osRmdir(args []object.Object) (object.Object, error) {
	path, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	if err := os.Remove(path); err != nil {
		return object.Object{}, err
	}
	return object.None(), nil
}

func (sb *Sandbox) osRename(args []object.Object) (object.Object, error) {
	if len(args) < 2 || args[0].Kind != object.KindStr || args[1].Kind != object.KindStr {
		return object.Object{}, fmt.Errorf("sandbox: rename expects (src, dst)")
	}
	if err := os.Rename(args[0].Str, args[1].Str); err != nil {
		return object.Object{}, err
	}
	return object.None(), nil
}

func (sb *Sandbox) osGetenv(args []object.Object) (object.Object, error) {
	name, err := pathArg(args)
	if err != nil {
		return object.Object{}, err
	}
	return object.Str(os.Getenv(name)), nil
}

func (sb *Sandbox) osGetEnviron() (object.Object, error) {
	env := os.Environ()
	entries := make([]object.DictEntry, 0, len(env))
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				entries = append(entries, object.DictEntry{
					Key:   object.Str(kv[:i]),
					Value: object.Str(kv[i+1:]),
				})
				break
			}
		}
	}
	return object.Dict(entries), nil
}
