package export

import (
	"encoding/json"
	"fmt"
	"os"

	"polar-flow-export/internal/model"
)

// WriteSummary 把运行汇总写成带缩进的 JSON 文件。
func WriteSummary(path string, s model.Summary) error {
	if s.Files == nil {
		s.Files = []string{}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
