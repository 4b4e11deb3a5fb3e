// Package roipac reads and writes ROI_PAC rasters: raw little-endian
// float32 files described by a ".rsc" key/value sidecar.
package roipac

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrBadRaster is returned for malformed rasters or sidecars
var ErrBadRaster = errors.New("roipac: malformed raster")

// Resource is the content of a .rsc sidecar
type Resource map[string]string

// Width returns the WIDTH entry
func (r Resource) Width() (int, error) {
	return r.intValue("WIDTH")
}

// Length returns the FILE_LENGTH entry
func (r Resource) Length() (int, error) {
	return r.intValue("FILE_LENGTH")
}

func (r Resource) intValue(key string) (int, error) {
	v, ok := r[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrBadRaster, key)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRaster, key, v)
	}
	return n, nil
}

// ParseResource reads "KEY value" lines
func ParseResource(r io.Reader) (Resource, error) {
	res := Resource{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		res[fields[0]] = strings.Join(fields[1:], " ")
	}
	return res, sc.Err()
}

// ReadResource reads the sidecar at path
func ReadResource(path string) (Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseResource(f)
}

// WriteResource writes the sidecar with keys in sorted order
func WriteResource(path string, res Resource) error {
	keys := make([]string, 0, len(res))
	for k := range res {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%-40s %s\n", k, res[k])
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// Dims returns the width and length declared by the sidecar of raster
func Dims(raster string) (width, length int, err error) {
	res, err := ReadResource(raster + ".rsc")
	if err != nil {
		return 0, 0, err
	}
	if width, err = res.Width(); err != nil {
		return 0, 0, err
	}
	if length, err = res.Length(); err != nil {
		return 0, 0, err
	}
	return width, length, nil
}
