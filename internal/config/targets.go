package config

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Device is one router to collect from
type Device struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
	Site    string `yaml:"site,omitempty" json:"site,omitempty"`
}

// Host returns the address to dial, falling back to the name
func (d Device) Host() string {
	if d.Address != "" {
		return d.Address
	}
	return d.Name
}

// LoadTargets reads the device list. YAML files hold a list of devices;
// anything else is CSV (hostname,address[,site]) or one hostname per line.
// Blank lines and # comments are skipped, duplicates keep the first entry.
func LoadTargets(path string) ([]Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open targets")
	}
	defer f.Close()

	var devices []Device
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(f).Decode(&devices); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	default:
		devices, err = parseTargets(f)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	}
	return dedupe(devices), nil
}

func parseTargets(r io.Reader) ([]Device, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	var devices []Device
	for i, rec := range records {
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "hostname") {
			continue
		}
		d := Device{Name: strings.TrimSpace(rec[0])}
		if len(rec) > 1 {
			d.Address = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 {
			d.Site = strings.TrimSpace(rec[2])
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func dedupe(devices []Device) []Device {
	seen := make(map[string]bool)
	out := devices[:0]
	for _, d := range devices {
		if d.Name == "" || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out
}
