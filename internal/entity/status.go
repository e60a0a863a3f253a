package entity

import (
	"fmt"
)

// AppStatus is the review lifecycle state of one app store version.
// The vendor wire value is only used at the edges, see ParseAppStatus and Wire.
type AppStatus int

const (
	StatusUnknown AppStatus = iota
	StatusAccepted
	StatusDeveloperRemovedFromSale
	StatusDeveloperRejected
	StatusInReview
	StatusInvalidBinary
	StatusMetadataRejected
	StatusPendingAppleRelease
	StatusPendingContract
	StatusPendingDeveloperRelease
	StatusPrepareForSubmission
	StatusPreorderReadyForSale
	StatusProcessingForAppStore
	StatusReadyForReview
	StatusReadyForSale
	StatusRejected
	StatusRemovedFromSale
	StatusWaitingForExportCompliance
	StatusWaitingForReview
	StatusReplacedWithNewVersion
	StatusNotApplicable
)

// Tone groups statuses that are presented the same way.
type Tone string

const (
	TonePositive   Tone = "positive"
	ToneNegative   Tone = "negative"
	ToneWarning    Tone = "warning"
	ToneReview     Tone = "review"
	TonePending    Tone = "pending"
	ToneProcessing Tone = "processing"
	TonePreorder   Tone = "preorder"
	ToneReplaced   Tone = "replaced"
	ToneNeutral    Tone = "neutral"
)

type statusInfo struct {
	wire  string
	label string
	tone  Tone
}

var statusTable = map[AppStatus]statusInfo{
	StatusUnknown:                    {"", "Unknown", ToneNeutral},
	StatusAccepted:                   {"ACCEPTED", "Accepted", TonePositive},
	StatusDeveloperRemovedFromSale:   {"DEVELOPER_REMOVED_FROM_SALE", "Removed from Sale by Developer", ToneWarning},
	StatusDeveloperRejected:          {"DEVELOPER_REJECTED", "Rejected by Developer", ToneNegative},
	StatusInReview:                   {"IN_REVIEW", "In Review", ToneReview},
	StatusInvalidBinary:              {"INVALID_BINARY", "Invalid Binary", ToneNegative},
	StatusMetadataRejected:           {"METADATA_REJECTED", "Metadata Rejected", ToneNegative},
	StatusPendingAppleRelease:        {"PENDING_APPLE_RELEASE", "Pending Apple Release", TonePending},
	StatusPendingContract:            {"PENDING_CONTRACT", "Pending Contract", TonePending},
	StatusPendingDeveloperRelease:    {"PENDING_DEVELOPER_RELEASE", "Pending Developer Release", TonePending},
	StatusPrepareForSubmission:       {"PREPARE_FOR_SUBMISSION", "Prepare for Submission", ToneProcessing},
	StatusPreorderReadyForSale:       {"PREORDER_READY_FOR_SALE", "Preorder Ready for Sale", TonePreorder},
	StatusProcessingForAppStore:      {"PROCESSING_FOR_APP_STORE", "Processing for App Store", ToneProcessing},
	StatusReadyForReview:             {"READY_FOR_REVIEW", "Ready for Review", ToneReview},
	StatusReadyForSale:               {"READY_FOR_SALE", "Ready for Sale", TonePositive},
	StatusRejected:                   {"REJECTED", "Rejected", ToneNegative},
	StatusRemovedFromSale:            {"REMOVED_FROM_SALE", "Removed from Sale", ToneWarning},
	StatusWaitingForExportCompliance: {"WAITING_FOR_EXPORT_COMPLIANCE", "Waiting for Export Compliance", TonePending},
	StatusWaitingForReview:           {"WAITING_FOR_REVIEW", "Waiting for Review", ToneReview},
	StatusReplacedWithNewVersion:     {"REPLACED_WITH_NEW_VERSION", "Replaced with New Version", ToneReplaced},
	StatusNotApplicable:              {"NOT_APPLICABLE", "Not Applicable", ToneNeutral},
}

var statusByWire = func() map[string]AppStatus {
	out := make(map[string]AppStatus, len(statusTable))
	for status, info := range statusTable {
		if info.wire != "" {
			out[info.wire] = status
		}
	}
	return out
}()

// ParseAppStatus maps a vendor wire value to AppStatus.
// Unrecognized values return StatusUnknown and false.
func ParseAppStatus(wire string) (AppStatus, bool) {
	status, ok := statusByWire[wire]
	if !ok {
		return StatusUnknown, false
	}

	return status, true
}

// Wire is the vendor value, empty for StatusUnknown.
func (s AppStatus) Wire() string {
	return statusTable[s].wire
}

func (s AppStatus) String() string {
	info, ok := statusTable[s]
	if !ok {
		return fmt.Sprintf("AppStatus(%d)", int(s))
	}

	return info.label
}

func (s AppStatus) Tone() Tone {
	info, ok := statusTable[s]
	if !ok {
		return ToneNeutral
	}

	return info.tone
}

// Editable reports whether release notes of a version in this state can still be changed.
func (s AppStatus) Editable() bool {
	return s == StatusPrepareForSubmission
}

func (s AppStatus) MarshalText() ([]byte, error) {
	return []byte(s.Wire()), nil
}

func (s *AppStatus) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = StatusUnknown
		return nil
	}

	status, ok := ParseAppStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown app status %q", string(text))
	}

	*s = status
	return nil
}
