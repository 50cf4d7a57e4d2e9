package dispatch

import(
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

type Format int
const(
	FormatJSON Format = iota
	FormatMsgpack
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json": return FormatJSON, nil
	case "msgpack":  return FormatMsgpack, nil
	}
	return FormatJSON, fmt.Errorf("unknown spool format %q", s)
}

func (f Format)Ext() string {
	if f == FormatMsgpack { return ".msgpack" }
	return ".json"
}

// A Spool is a directory of pending tasks, one file each, named by
// task id. The file transfer side picks them up from there.
type Spool struct {
	Dir     string
	Format  Format
}

func (s *Spool)Write(t Task) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	switch s.Format {
	case FormatMsgpack:
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(t); err != nil {
			return "", fmt.Errorf("msgpack %s: %v", t, err)
		}
	default:
		if err := json.NewEncoder(&buf).Encode(t); err != nil {
			return "", fmt.Errorf("json %s: %v", t, err)
		}
	}

	filename := filepath.Join(s.Dir, t.ID + s.Format.Ext())
	tmp := filepath.Join(s.Dir, "." + t.ID + ".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return filename, nil
}

// ReadTask decodes a spooled task, picking the codec from the extension.
func ReadTask(filename string) (Task, error) {
	t := Task{}
	contents, err := os.ReadFile(filename)
	if err != nil {
		return t, err
	}

	switch filepath.Ext(filename) {
	case ".msgpack":
		dec := msgpack.NewDecoder(bytes.NewReader(contents))
		dec.SetCustomStructTag("json")
		err = dec.Decode(&t)
	case ".json":
		err = json.Unmarshal(contents, &t)
	default:
		err = fmt.Errorf("not a spool file")
	}
	if err != nil {
		return t, fmt.Errorf("read task '%s': %v", filename, err)
	}
	return t, nil
}

// Pending lists the spooled task files, oldest name first.
func (s *Spool)Pending() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) { return nil, nil }
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") && (ext == ".json" || ext == ".msgpack") {
			files = append(files, filepath.Join(s.Dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
