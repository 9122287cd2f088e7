// Package findings holds the finding model shared by the store adapter and
// the reconciliation engine, plus the reader for the run's findings file.
package findings

import (
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
)

// ASFFTimeFormat is the second-precision UTC layout used for UpdatedAt.
const ASFFTimeFormat = "2006-01-02T15:04:05Z"

// State is a finding's record state.
type State string

const (
	StateActive   State = "ACTIVE"
	StateArchived State = "ARCHIVED"
)

// Finding is one audit result. ProductArn encodes the region as its fourth
// colon-delimited segment.
type Finding struct {
	ProductArn  string `json:"ProductArn"`
	ID          string `json:"Id"`
	RecordState State  `json:"RecordState,omitempty"`
	UpdatedAt   string `json:"UpdatedAt,omitempty"`

	// Record is the full ASFF document when one is available. It is what
	// gets submitted back to the store.
	Record *shtypes.AwsSecurityFinding `json:"-"`
}

// Region parses the region out of ProductArn, or returns "" when the arn is
// malformed.
func (f Finding) Region() string {
	parts := strings.Split(f.ProductArn, ":")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// Archived returns a copy marked ARCHIVED at ts. The original Record is not
// modified.
func (f Finding) Archived(ts string) Finding {
	return f.withState(StateArchived, ts)
}

// Active returns a copy marked ACTIVE at ts.
func (f Finding) Active(ts string) Finding {
	return f.withState(StateActive, ts)
}

func (f Finding) withState(state State, ts string) Finding {
	f.RecordState = state
	f.UpdatedAt = ts
	if f.Record != nil {
		rec := *f.Record
		rec.RecordState = shtypes.RecordState(state)
		rec.UpdatedAt = aws.String(ts)
		f.Record = &rec
	}
	return f
}

// FromASFF wraps a store record.
func FromASFF(rec shtypes.AwsSecurityFinding) Finding {
	state := State(rec.RecordState)
	if state == "" {
		state = StateActive
	}
	return Finding{
		ProductArn:  aws.ToString(rec.ProductArn),
		ID:          aws.ToString(rec.Id),
		RecordState: state,
		UpdatedAt:   aws.ToString(rec.UpdatedAt),
		Record:      &rec,
	}
}

// Timestamp formats t as an ASFF UpdatedAt value.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(ASFFTimeFormat)
}

// GroupByRegion groups findings by region, keeping input order within each group.
func GroupByRegion(fs []Finding) map[string][]Finding {
	groups := make(map[string][]Finding)
	for _, f := range fs {
		region := f.Region()
		groups[region] = append(groups[region], f)
	}
	return groups
}

// Regions returns the sorted distinct regions the findings were reported in.
func Regions(fs []Finding) []string {
	var out []string
	for _, f := range fs {
		if r := f.Region(); r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// IDs returns the set of finding ids.
func IDs(fs []Finding) map[string]struct{} {
	ids := make(map[string]struct{}, len(fs))
	for _, f := range fs {
		ids[f.ID] = struct{}{}
	}
	return ids
}
