package shared

import (
	"encoding/json"
	"errors"
	"os"
)

// UploaderConfig is the JSON config file read by ipkv-upload.
type UploaderConfig struct {
	WorkerURL      string `json:"worker_url"`
	WorkerAPIKey   string `json:"worker_api_key"`
	Key            string `json:"key"`
	Action         string `json:"action"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func LoadUploaderConfig(path string) (*UploaderConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c UploaderConfig
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	return &c, nil
}

// ApplyDefaults fills unset optional fields.
func (c *UploaderConfig) ApplyDefaults() {
	if c.Key == "" {
		c.Key = "ADD.txt"
	}
	if c.Action == "" {
		c.Action = ActionReplace
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate reports the first missing required field.
func (c *UploaderConfig) Validate() error {
	if c.WorkerURL == "" {
		return errors.New("worker_url is required")
	}
	if c.WorkerAPIKey == "" {
		return errors.New("worker_api_key is required")
	}
	if c.Action != ActionReplace && c.Action != ActionAppend {
		return errors.New(`action must be "replace" or "append"`)
	}
	return nil
}

func SaveUploaderConfig(path string, c *UploaderConfig) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}
