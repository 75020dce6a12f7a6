// Package layout builds the declarative tree document an external viewer
// uses to group the generated log files, and seeds the files it references.
package layout

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Display metadata cycles through these by group position
var groupNames = []string{
	"Application Logs", "System Logs", "Service Logs", "Database Logs",
	"Network Logs", "Security Logs", "Performance Logs", "Error Logs",
}

var groupIcons = []string{"📱", "🖥️", "⚙️", "🗄️", "🌐", "🔒", "📊", "❌"}

// A FileRef points the viewer at one generated file.
type FileRef struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// A Group holds either a flat file list or one level of sub-groups.
type Group struct {
	Name      string    `yaml:"name"`
	Icon      string    `yaml:"icon,omitempty"`
	Collapsed bool      `yaml:"collapsed"`
	Groups    []Group   `yaml:"groups,omitempty"`
	Files     []FileRef `yaml:"files,omitempty"`
}

// Settings are opaque passthrough hints for the viewer.
type Settings struct {
	PollIntervalMs   int  `yaml:"poll_interval_ms"`
	AutoExpandActive bool `yaml:"auto_expand_active"`
}

// A Document is the whole layout tree. Built once, written once.
type Document struct {
	Name     string   `yaml:"name"`
	Version  int      `yaml:"version"`
	Settings Settings `yaml:"settings"`
	Groups   []Group  `yaml:"groups"`
}

// Config drives one Build call.
type Config struct {
	OutputDir        string
	Prefix           string
	FileCount        int
	GroupCount       int
	Nested           bool
	PollIntervalMs   int
	AutoExpandActive bool
}

// Build partitions the files into groups and returns the document, creating
// and seeding every referenced file on the way. Files are spread evenly:
// group sizes differ by at most one, with the remainder going one each to
// the leading groups. When Nested is set the first group is split into two
// sub-groups instead of a flat file list.
func Build(config Config) (*Document, error) {
	if config.FileCount < 1 {
		return nil, fmt.Errorf("file count must be positive, got %d", config.FileCount)
	}
	if config.GroupCount < 1 {
		return nil, fmt.Errorf("group count must be positive, got %d", config.GroupCount)
	}
	if config.GroupCount > config.FileCount {
		return nil, fmt.Errorf(
			"can't spread %d files over %d groups", config.FileCount, config.GroupCount,
		)
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", config.OutputDir, err)
	}

	doc := &Document{
		Name:    fmt.Sprintf("Test Tree Layout - %d groups, %d files", config.GroupCount, config.FileCount),
		Version: 1,
		Settings: Settings{
			PollIntervalMs:   config.PollIntervalMs,
			AutoExpandActive: config.AutoExpandActive,
		},
	}

	perGroup := config.FileCount / config.GroupCount
	remainder := config.FileCount % config.GroupCount

	fileNum := 1
	for i := 0; i < config.GroupCount; i++ {
		size := perGroup
		if i < remainder {
			size++
		}

		group, err := buildGroup(config, i, fileNum, size)
		if err != nil {
			return nil, err
		}

		doc.Groups = append(doc.Groups, group)
		fileNum += size
	}

	return doc, nil
}

func buildGroup(config Config, position, firstFile, size int) (Group, error) {
	group := Group{
		Name: groupNames[position%len(groupNames)],
		Icon: groupIcons[position%len(groupIcons)],

		// The first group starts expanded, the rest collapsed
		Collapsed: position > 0,
	}

	if config.Nested && position == 0 {
		split := size / 2

		core, err := fileRefs(config, firstFile, split)
		if err != nil {
			return Group{}, err
		}
		background, err := fileRefs(config, firstFile+split, size-split)
		if err != nil {
			return Group{}, err
		}

		group.Groups = []Group{
			{Name: "Core Services", Files: core},
			{Name: "Background Jobs", Collapsed: true, Files: background},
		}
		return group, nil
	}

	files, err := fileRefs(config, firstFile, size)
	if err != nil {
		return Group{}, err
	}
	group.Files = files

	return group, nil
}

// fileRefs creates and seeds `count` files starting at number `first` and
// returns viewer references with absolute, forward-slash paths.
func fileRefs(config Config, first, count int) ([]FileRef, error) {
	var refs []FileRef

	for i := 0; i < count; i++ {
		num := first + i
		path := filepath.Join(config.OutputDir, fmt.Sprintf("%s_%d.log", config.Prefix, num))

		if err := seedFile(path, num); err != nil {
			return nil, err
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path for %s: %w", path, err)
		}

		refs = append(refs, FileRef{
			Path: filepath.ToSlash(absPath),
			Name: fmt.Sprintf("Test Log %d", num),
		})
	}

	return refs, nil
}

// seedFile truncates the file and writes the two-line starter content so the
// viewer has something to show before the writers ramp up.
func seedFile(path string, num int) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	content := fmt.Sprintf(
		"[%s] Starting test log %d\n[%s] Initial content for testing\n",
		timestamp, num, timestamp,
	)

	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to seed %s: %w", path, err)
	}

	return nil
}

// WriteFile serializes the document as YAML.
func (d *Document) WriteFile(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode layout: %w", err)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write layout %s: %w", path, err)
	}

	return nil
}
