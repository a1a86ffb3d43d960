package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Region is the closed set of deployment regions a check can be probed from.
type Region string

const (
	RegionFsn1 Region = "fsn1" // Falkenstein, Germany
	RegionHel1 Region = "hel1" // Helsinki, Finland
	RegionNbg1 Region = "nbg1" // Nuremberg, Germany
)

// Regions lists every member of the closed Region enum, in declaration order.
func Regions() []Region { return []Region{RegionFsn1, RegionHel1, RegionNbg1} }

// ParseRegion validates a region identifier against the closed enum.
func ParseRegion(s string) (Region, error) {
	switch Region(strings.ToLower(s)) {
	case RegionFsn1:
		return RegionFsn1, nil
	case RegionHel1:
		return RegionHel1, nil
	case RegionNbg1:
		return RegionNbg1, nil
	default:
		return "", fmt.Errorf("unknown region identifier: %q", s)
	}
}

func (r Region) Valid() bool {
	switch r {
	case RegionFsn1, RegionHel1, RegionNbg1:
		return true
	default:
		return false
	}
}

// HTTPMethod is the closed set of methods a check may issue.
type HTTPMethod string

const (
	MethodGET    HTTPMethod = "GET"
	MethodPOST   HTTPMethod = "POST"
	MethodPUT    HTTPMethod = "PUT"
	MethodDELETE HTTPMethod = "DELETE"
	MethodHEAD   HTTPMethod = "HEAD"
)

func (m HTTPMethod) Valid() bool {
	switch m {
	case MethodGET, MethodPOST, MethodPUT, MethodDELETE, MethodHEAD:
		return true
	default:
		return false
	}
}

// Outcome is the closed set of probe results a CheckResult row may record.
type Outcome string

const (
	OutcomeOK             Outcome = "OK"
	OutcomeStatusMismatch Outcome = "STATUS_MISMATCH"
	OutcomeTimeout        Outcome = "TIMEOUT"
	OutcomeDNSFail        Outcome = "DNS_FAIL"
	OutcomeConnFail       Outcome = "CONN_FAIL"
	OutcomeTLSFail        Outcome = "TLS_FAIL"
	OutcomeBlockedPrivate Outcome = "BLOCKED_PRIVATE"
	OutcomeBodyReadFail   Outcome = "BODY_READ_FAIL"
	OutcomeInternal       Outcome = "INTERNAL"
)

// Check is the configuration of one endpoint to monitor.
type Check struct {
	CheckID            uuid.UUID         `json:"check_id"`
	OwnerUserID        uuid.UUID         `json:"owner_user_id"`
	Name               string            `json:"check_name"`
	URL                string            `json:"url"`
	HTTPMethod         HTTPMethod        `json:"http_method"`
	RequestHeaders     map[string]string `json:"request_headers"`
	RequestBody        []byte            `json:"request_body,omitempty"`
	ExpectedStatusCode int               `json:"expected_status_code"`
	TimeoutSeconds     int               `json:"timeout_seconds"`
	CheckFrequencySecs int               `json:"check_frequency_seconds"`
	Regions            []Region          `json:"regions"`
	IsEnabled          bool              `json:"is_enabled"`
	CreatedAtMicros    uint64            `json:"created_at_micros"`
}

// Valid reports whether the check satisfies the invariants required of
// anything the range manager is allowed to schedule.
func (c Check) Valid() bool {
	if c.CheckFrequencySecs < 10 {
		return false
	}
	if c.TimeoutSeconds < 1 {
		return false
	}
	if c.ExpectedStatusCode < 100 || c.ExpectedStatusCode > 599 {
		return false
	}
	if len(c.Regions) == 0 {
		return false
	}
	for _, r := range c.Regions {
		if !r.Valid() {
			return false
		}
	}
	if !c.HTTPMethod.Valid() {
		return false
	}
	return true
}

// CheckResult is one probe outcome, append-only once written.
type CheckResult struct {
	CheckID            uuid.UUID `json:"check_id"`
	Region             Region    `json:"region"`
	TimeBucketMicros   uint64    `json:"time_bucket_micros"`
	ScheduledAtMicros  uint64    `json:"scheduled_at_micros"`
	Outcome            Outcome   `json:"outcome"`
	ResponseTimeMicros uint64    `json:"response_time_micros"`
	ObservedStatus     *int      `json:"observed_status,omitempty"`
	ExecutorNodeID     uuid.UUID `json:"executor_node_id"`
}

// TimeBucketWidthMicros is the default result-partition width (1 hour).
const TimeBucketWidthMicros uint64 = 3600 * 1_000_000

// Align floors t to the nearest multiple of width. It uses the same
// epoch-anchored grid as AlignUp (the scheduler's ceil-based align()), so
// graph buckets, time buckets and due times line up on one grid.
func Align(t, width uint64) uint64 {
	if width == 0 {
		return t
	}
	return (t / width) * width
}

// AlignUp ceils t to the nearest multiple of width, used for scheduler due
// times: align(t, f) = ceil(t/f) * f.
func AlignUp(t, width uint64) uint64 {
	if width == 0 {
		return t
	}
	if t%width == 0 {
		return t
	}
	return (t/width + 1) * width
}

// Heartbeat is a node's self-reported liveness row.
type Heartbeat struct {
	NodeID            uuid.UUID `json:"node_id"`
	Region            Region    `json:"region"`
	LastSeenMicros    uint64    `json:"last_seen_micros"`
	BucketVersion     int16     `json:"bucket_version"`
	BucketsCount      int32     `json:"buckets_count"`
	ReplicationFactor int32     `json:"replication_factor"`
	GitSHA            string    `json:"git_sha,omitempty"`
	ReplicaLabel      string    `json:"replica_label,omitempty"`
}

// RingView is the derived (never persisted) live-node set a point in time,
// sorted by NodeID, together with the ring parameters used to assign checks.
type RingView struct {
	LiveNodes         []uuid.UUID
	BucketsCount      int32
	ReplicationFactor int32
	BucketVersion     int16
}
