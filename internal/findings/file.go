package findings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
)

const (
	FilePrefix = "cloudaudit-output"
	FileSuffix = ".asff.json"
)

// FileName is the path of the findings file for account in dir.
func FileName(dir, account string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", FilePrefix, account, FileSuffix))
}

// ReadFile loads the current run's findings. Every record needs ProductArn
// and Id and must decode as ASFF; records without a RecordState are ACTIVE.
func ReadFile(path string) ([]Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of ASFF records.
func Parse(data []byte) ([]Finding, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse findings: %w", err)
	}

	out := make([]Finding, 0, len(raw))
	for i, msg := range raw {
		var f Finding
		if err := json.Unmarshal(msg, &f); err != nil {
			return nil, fmt.Errorf("finding %d: %w", i, err)
		}
		if f.ID == "" || f.ProductArn == "" {
			return nil, fmt.Errorf("finding %d: missing Id or ProductArn", i)
		}
		if f.Region() == "" {
			return nil, fmt.Errorf("finding %s: no region in product arn %q", f.ID, f.ProductArn)
		}
		if f.RecordState == "" {
			f.RecordState = StateActive
		}

		var rec shtypes.AwsSecurityFinding
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, fmt.Errorf("finding %s: invalid ASFF record: %w", f.ID, err)
		}
		f.Record = &rec
		out = append(out, f)
	}
	return out, nil
}
