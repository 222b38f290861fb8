package workbook

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// WorkbookFileName is the default workbook file name.
const WorkbookFileName = "workbook.yaml"

// WorkbookFileNameAlt is the alternate workbook file name.
const WorkbookFileNameAlt = "workbook.yml"

// Load reads and validates a workbook file.
func Load(path string) (*Workbook, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading workbook %s: %w", path, err)
	}

	var wb Workbook
	// WeaklyTypedInput lets YAML scalars land in the any-typed row cells
	// and filter values without per-field decode hooks.
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &wb,
			WeaklyTypedInput: true,
			Squash:           true,
		},
	}
	if err := k.UnmarshalWithConf("", &wb, conf); err != nil {
		return nil, fmt.Errorf("parsing workbook %s: %w", path, err)
	}

	if wb.Name == "" {
		base := filepath.Base(path)
		wb.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	if err := wb.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workbook %s: %w", path, err)
	}
	return &wb, nil
}

// LoadFromDir loads workbook.yaml or workbook.yml from the given directory.
// Returns nil, nil when no workbook file exists.
func LoadFromDir(dir string) (*Workbook, error) {
	path := findWorkbookFile(dir)
	if path == "" {
		return nil, nil
	}
	return Load(path)
}

func findWorkbookFile(dir string) string {
	yamlPath := filepath.Join(dir, WorkbookFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	ymlPath := filepath.Join(dir, WorkbookFileNameAlt)
	if _, err := os.Stat(ymlPath); err == nil {
		return ymlPath
	}
	return ""
}
